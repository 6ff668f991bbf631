// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	applog "cqtscope/internal/log"
	"cqtscope/internal/transport"
)

var publisherLog = applog.Named("UDPPublisher")

// PacketSender encodes and transmits one spectrum packet, returning the
// packet's sequence number.
type PacketSender interface {
	SendSpectrum(at time.Time, magnitudes []float32) (uint32, error)
}

// UDPPublisher periodically fetches the latest CQT magnitudes and hands
// them to a PacketSender. It runs in a separate goroutine managed by
// Start and Stop.
type UDPPublisher struct {
	sender   PacketSender
	provider transport.SpectrumProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	lastSeq uint64 // Spectrum sequence of the last packet sent.
	sent    uint64

	magnitudes []float32 // Reused on every tick.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender PacketSender, provider transport.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		publisherLog.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	bins := provider.Bins()
	if bins > MaxMagnitudes {
		publisherLog.Warnf("%d bins exceed packet limit, sending first %d", bins, MaxMagnitudes)
		bins = MaxMagnitudes
	}
	publisherLog.Infof("Initializing (Interval: %s, CQT Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:     sender,
		provider:   provider,
		interval:   interval,
		magnitudes: make([]float32, bins),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		publisherLog.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		publisherLog.Infof("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	publisherLog.Infof("Publisher goroutine finished after %d packets.", p.sent)
	return nil
}

// publish sends one packet if a spectrum newer than the last one sent
// is available.
func (p *UDPPublisher) publish() {
	n, seq, ok := p.provider.MagnitudesInto(p.magnitudes)
	if !ok || seq == p.lastSeq {
		return
	}
	p.lastSeq = seq

	pkt, err := p.sender.SendSpectrum(time.Now(), p.magnitudes[:n])
	if err != nil {
		return
	}
	p.sent++
	publisherLog.Debugf("Sent packet %d (spectrum %d, %d bins)", pkt, seq, n)
}

// Close implements the io.Closer interface.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)

// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	applog "cqtscope/internal/log"
)

// MaxDatagram is the largest IPv4 UDP payload.
const MaxDatagram = 65507

// maxDatagramMagnitudes is the largest bin count that fits one datagram.
const maxDatagramMagnitudes = (MaxDatagram - HeaderSize) / 4

var ErrSenderClosed = errors.New("udp sender closed")

var senderLog = applog.Named("UDPSender")

// SenderStats counts datagrams written by a UDPSender.
type SenderStats struct {
	Packets uint64 // Datagrams written.
	Bytes   uint64 // Payload bytes written.
	Errors  uint64 // Failed writes; their sequence numbers are skipped.
}

// UDPSender encodes spectra into sequenced packets and writes each one
// as a single datagram to a fixed peer.
type UDPSender struct {
	conn   *net.UDPConn
	target string

	mu      sync.Mutex // Guards everything below.
	closed  bool
	seq     uint32
	scratch []byte
	stats   SenderStats
}

// NewUDPSender dials targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP target %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial UDP target %q: %w", targetAddress, err)
	}

	senderLog.Infof("Sending spectra to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// SendSpectrum writes magnitudes as the next packet in sequence and
// returns its sequence number. Bins that do not fit one datagram are
// dropped. The sequence advances even when the write fails so receivers
// can detect the gap.
func (s *UDPSender) SendSpectrum(at time.Time, magnitudes []float32) (uint32, error) {
	if len(magnitudes) > maxDatagramMagnitudes {
		magnitudes = magnitudes[:maxDatagramMagnitudes]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSenderClosed
	}

	s.seq++
	s.scratch = AppendPacket(s.scratch[:0], s.seq, at.UnixNano(), magnitudes)
	n, err := s.conn.Write(s.scratch)
	if err != nil {
		s.stats.Errors++
		senderLog.Warnf("Packet %d to %s: %v", s.seq, s.target, err)
		return s.seq, fmt.Errorf("send packet %d: %w", s.seq, err)
	}
	s.stats.Packets++
	s.stats.Bytes += uint64(n)
	return s.seq, nil
}

// Stats returns a snapshot of the sender counters.
func (s *UDPSender) Stats() SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the connection. Later sends return ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	senderLog.Infof("Closing %s after %d packets (%d failed)", s.target, s.stats.Packets, s.stats.Errors)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close UDP connection: %w", err)
	}
	return nil
}

var _ PacketSender = (*UDPSender)(nil)

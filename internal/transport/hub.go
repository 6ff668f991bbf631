// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"

	"cqtscope/internal/cqt"
)

// SpectrumMessage is the JSON shape pushed to spectrum consumers.
type SpectrumMessage struct {
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	Magnitudes []float32 `json:"magnitudes"`
	Peak       int       `json:"peak"`
	PeakHz     float32   `json:"peakHz"`
}

// Hub receives spectra from the analysis loop, keeps a copy of the
// latest one for pull-based publishers and pushes a *SpectrumMessage to
// every attached transport. The pushed message is rewritten by the next
// Emit.
type Hub struct {
	bank *cqt.KernelBank

	mu     sync.RWMutex
	latest []float32
	seq    uint64

	msg        SpectrumMessage // Owned by the Emit goroutine.
	transports []Transport
}

var _ SpectrumProvider = (*Hub)(nil)

// NewHub creates a hub for spectra produced from bank.
func NewHub(bank *cqt.KernelBank, transports ...Transport) *Hub {
	return &Hub{
		bank:       bank,
		latest:     make([]float32, bank.Bins()),
		msg:        SpectrumMessage{Type: "cqt", Magnitudes: make([]float32, bank.Bins())},
		transports: transports,
	}
}

// Attach adds a push transport. Not safe to call while Emit is running.
func (h *Hub) Attach(t Transport) {
	h.transports = append(h.transports, t)
}

// Emit stores a copy of spectrum and forwards it. The loop's buffer is
// never retained and nothing is allocated unless a transport fails.
func (h *Hub) Emit(spectrum cqt.Spectrum) error {
	if len(spectrum) != len(h.latest) {
		return fmt.Errorf("%w: spectrum has %d bins, want %d", cqt.ErrFrameSize, len(spectrum), len(h.latest))
	}

	h.mu.Lock()
	copy(h.latest, spectrum)
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	if len(h.transports) == 0 {
		return nil
	}

	peak := cqt.PeakBin(spectrum)
	msg := &h.msg
	msg.Seq = seq
	copy(msg.Magnitudes, spectrum)
	msg.Peak = peak
	msg.PeakHz = h.bank.Frequency(peak)

	var errs []error
	for _, t := range h.transports {
		if err := t.Send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MagnitudesInto implements SpectrumProvider.
func (h *Hub) MagnitudesInto(dst []float32) (int, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.seq == 0 {
		return 0, 0, false
	}
	return copy(dst, h.latest), h.seq, true
}

// Bins implements SpectrumProvider.
func (h *Hub) Bins() int { return len(h.latest) }

// Close closes every attached transport.
func (h *Hub) Close() error {
	var errs []error
	for _, t := range h.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

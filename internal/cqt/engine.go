// SPDX-License-Identifier: MIT
package cqt

import (
	"errors"
	"fmt"
	"math"
)

// ErrFrameSize is returned when a frame or spectrum buffer does not match
// the kernel bank dimensions.
var ErrFrameSize = errors.New("buffer length does not match kernel bank")

// Spectrum holds one magnitude per bin, in kernel bank order.
type Spectrum []float32

// Engine correlates audio frames against a KernelBank. An Engine holds no
// per-frame state; concurrent Compute calls are safe as long as each call
// has its own output buffer.
type Engine struct {
	bank *KernelBank
}

// NewEngine returns an engine bound to bank.
func NewEngine(bank *KernelBank) (*Engine, error) {
	if bank == nil {
		return nil, fmt.Errorf("%w: kernel bank cannot be nil", ErrInvalidParams)
	}
	return &Engine{bank: bank}, nil
}

// Bank returns the kernel bank the engine correlates against.
func (e *Engine) Bank() *KernelBank { return e.bank }

// NewSpectrum allocates a spectrum sized for the engine's bank.
func (e *Engine) NewSpectrum() Spectrum {
	return make(Spectrum, e.bank.Bins())
}

// Compute writes the magnitude of every bin for frame into out.
// Performance Critical (Hot Path):
// - No allocations
// - Each kernel is only evaluated over its own support
//
// frame must hold exactly FFTSize samples and out exactly Bins values.
func (e *Engine) Compute(frame []float32, out Spectrum) error {
	if len(frame) != e.bank.FFTSize() {
		// TODO:
		// Preallocate this error message.
		return fmt.Errorf("%w: frame has %d samples, want %d", ErrFrameSize, len(frame), e.bank.FFTSize())
	}
	if len(out) != e.bank.Bins() {
		return fmt.Errorf("%w: spectrum has %d bins, want %d", ErrFrameSize, len(out), e.bank.Bins())
	}

	for k := range e.bank.kernels {
		kern := &e.bank.kernels[k]
		sig := kern.Signal[kern.Start:kern.End()]
		in := frame[kern.Start:kern.End()]

		var sum Complex
		for n, c := range sig {
			sum.Real += in[n] * c.Real
			sum.Imag -= in[n] * c.Imag
		}
		out[k] = float32(math.Sqrt(float64(sum.Real*sum.Real + sum.Imag*sum.Imag)))
	}

	return nil
}

// Spectrum is the pull-style form of Compute; it allocates the result.
func (e *Engine) Spectrum(frame []float32) (Spectrum, error) {
	out := e.NewSpectrum()
	if err := e.Compute(frame, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PeakBin returns the index of the largest magnitude in s, or 0 for an
// empty spectrum. Ties resolve to the lowest index.
func PeakBin(s Spectrum) int {
	peak := 0
	for i := 1; i < len(s); i++ {
		if s[i] > s[peak] {
			peak = i
		}
	}
	return peak
}

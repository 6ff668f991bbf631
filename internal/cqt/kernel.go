// SPDX-License-Identifier: MIT
/*
Package cqt implements a Constant-Q Transform computed by direct
time-domain correlation against a bank of precomputed kernels.

Bins are spaced geometrically from FMin, BinsPerOctave bins to the
octave, so every bin has the same ratio of centre frequency to
bandwidth (Q). Each bin owns a windowed complex exponential whose
support length shrinks as the centre frequency grows. All kernels share
one buffer length (FFTSize) and sit centred inside it, which lets a
single frame of FFTSize samples be correlated against every bin.

Kernel Bank:
- Built once from Params, immutable afterwards
- Safe to share between goroutines without locking

Engine:
- Correlates a frame against each kernel over its support only
- No allocations and no state carried between frames
*/
package cqt

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned by NewKernelBank when the analysis
// parameters cannot describe a constant-Q bank.
var ErrInvalidParams = errors.New("invalid kernel parameters")

// Complex is a single precision real/imaginary pair.
type Complex struct {
	Real float32
	Imag float32
}

// Params holds the global analysis parameters a KernelBank is built from.
// There are no defaults here; every field must be supplied by the caller.
type Params struct {
	SampleRate    int     // Sample rate of the analysed signal (Hz).
	FFTSize       int     // Shared kernel buffer and frame length (samples).
	FMin          float64 // Centre frequency of bin 0 (Hz).
	BinsPerOctave int     // Bins per doubling of frequency, must be > 1.
	Bins          int     // Number of bins, must be > 0.
}

// Validate reports whether the parameters can produce a kernel bank.
func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParams, p.SampleRate)
	case p.FFTSize <= 0:
		return fmt.Errorf("%w: fft size must be positive, got %d", ErrInvalidParams, p.FFTSize)
	case !(p.FMin > 0) || math.IsInf(p.FMin, 1):
		return fmt.Errorf("%w: minimum frequency must be positive, got %g", ErrInvalidParams, p.FMin)
	case p.BinsPerOctave <= 1:
		return fmt.Errorf("%w: bins per octave must be greater than 1, got %d", ErrInvalidParams, p.BinsPerOctave)
	case p.Bins <= 0:
		return fmt.Errorf("%w: bin count must be positive, got %d", ErrInvalidParams, p.Bins)
	}
	return nil
}

// TimeKernel is the windowed complex exponential for one bin. Signal is
// FFTSize long and zero outside [Start, Start+Len).
type TimeKernel struct {
	Signal []Complex
	Len    int
	Start  int
}

// End returns the first index past the kernel support.
func (k *TimeKernel) End() int {
	return k.Start + k.Len
}

// KernelBank is the ordered set of kernels, one per bin, indexed by
// increasing centre frequency.
type KernelBank struct {
	params      Params
	q           float32
	kernels     []TimeKernel
	frequencies []float32
}

// NewKernelBank synthesises one kernel per bin. Bins whose ideal support
// would not fit into FFTSize samples are truncated to FFTSize.
func NewKernelBank(p Params) (*KernelBank, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ratio := math.Pow(2, 1/float64(p.BinsPerOctave))
	q := float32(1 / (ratio - 1))
	fs := float32(p.SampleRate)

	b := &KernelBank{
		params:      p,
		q:           q,
		kernels:     make([]TimeKernel, p.Bins),
		frequencies: make([]float32, p.Bins),
	}

	for k := range p.Bins {
		fk := float32(p.FMin * math.Pow(2, float64(k)/float64(p.BinsPerOctave)))
		b.frequencies[k] = fk
		b.kernels[k] = synthesize(fk, q, fs, p.FFTSize)
	}

	return b, nil
}

// synthesize builds the kernel for centre frequency fk. Only indices in
// the open interval (start, start+length) are written; signal[start]
// stays zero.
func synthesize(fk, q, fs float32, fftSize int) TimeKernel {
	// Clamp before converting: a tiny fk overflows int or rounds to zero.
	length := fftSize
	if ideal := math.Ceil(float64(q * fs / fk)); ideal < float64(fftSize) {
		length = int(ideal)
	}

	half := float64(fftSize)/2 - float64(length)/2
	var start int
	if length%2 == 1 {
		start = int(math.Ceil(half)) - 1
	} else {
		start = int(math.Ceil(half))
	}
	if start < 0 {
		start = 0
	}

	kern := TimeKernel{
		Signal: make([]Complex, fftSize),
		Len:    length,
		Start:  start,
	}

	n := float32(length)
	s := -(length / 2)
	end := start + length
	for i := start + 1; i < end; i++ {
		w := 2 * math.Pi * float32(s) * fk / fs
		win := hamming(n, float32(i))
		kern.Signal[i] = Complex{
			Real: win * float32(math.Cos(float64(w))) / n,
			Imag: win * float32(math.Sin(float64(w))) / n,
		}
		s++
	}

	return kern
}

// hamming evaluates 0.46 - 0.54*cos(2*pi*i/n).
func hamming(n, i float32) float32 {
	return 0.46 - 0.54*float32(math.Cos(float64(2*math.Pi*i/n)))
}

// Params returns the parameters the bank was built from.
func (b *KernelBank) Params() Params { return b.params }

// Bins returns the number of kernels in the bank.
func (b *KernelBank) Bins() int { return len(b.kernels) }

// FFTSize returns the shared kernel buffer length.
func (b *KernelBank) FFTSize() int { return b.params.FFTSize }

// Q returns the quality factor shared by every bin.
func (b *KernelBank) Q() float32 { return b.q }

// Kernel returns the kernel for bin k. The returned kernel must not be
// modified.
func (b *KernelBank) Kernel(k int) *TimeKernel {
	return &b.kernels[k]
}

// Frequency returns the centre frequency of bin k in Hz, or 0 when k is
// out of range.
func (b *KernelBank) Frequency(k int) float32 {
	if k < 0 || k >= len(b.frequencies) {
		return 0
	}
	return b.frequencies[k]
}

// Frequencies returns a copy of every bin centre frequency.
func (b *KernelBank) Frequencies() []float32 {
	out := make([]float32, len(b.frequencies))
	copy(out, b.frequencies)
	return out
}

// Support returns the summed support length of all kernels, i.e. the
// number of multiply-accumulates one Compute call performs.
func (b *KernelBank) Support() int {
	total := 0
	for i := range b.kernels {
		total += b.kernels[i].Len
	}
	return total
}

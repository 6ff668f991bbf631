// SPDX-License-Identifier: MIT
package cqt

import (
	"math"

	"cqtscope/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// KernelReport describes one kernel's geometry and where its real part
// peaks in a zero-padded FFT.
type KernelReport struct {
	Bin        int
	Frequency  float64 // Nominal bin frequency, Hz.
	Len        int
	Start      int
	Clamped    bool    // Support was limited to the frame length.
	PeakHz     float64 // Measured spectral peak, Hz.
	Resolution float64 // FFT bin spacing used for the measurement, Hz.
}

// Deviation returns PeakHz - Frequency.
func (r KernelReport) Deviation() float64 { return r.PeakHz - r.Frequency }

// InspectBank measures the given bins, or every bin when bins is empty.
// Out of range bins are skipped. Intended for diagnostics, not the
// real-time path.
func InspectBank(bank *KernelBank, bins ...int) []KernelReport {
	if len(bins) == 0 {
		bins = make([]int, bank.Bins())
		for k := range bins {
			bins[k] = k
		}
	}

	fs := float64(bank.params.SampleRate)
	n := bitint.NextPowerOfTwo(bank.FFTSize())
	fft := fourier.NewFFT(n)
	seq := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	mags := make([]float64, n/2+1)

	reports := make([]KernelReport, 0, len(bins))
	for _, k := range bins {
		kern := bank.Kernel(k)
		if kern == nil {
			continue
		}

		clear(seq)
		for i, c := range kern.Signal {
			seq[i] = float64(c.Real)
		}
		coeffs = fft.Coefficients(coeffs, seq)
		for i, c := range coeffs {
			mags[i] = math.Hypot(real(c), imag(c))
		}
		peak := floats.MaxIdx(mags)

		reports = append(reports, KernelReport{
			Bin:        k,
			Frequency:  float64(bank.Frequency(k)),
			Len:        kern.Len,
			Start:      kern.Start,
			Clamped:    kern.Len == bank.FFTSize(),
			PeakHz:     fft.Freq(peak) * fs,
			Resolution: fs / float64(n),
		})
	}
	return reports
}

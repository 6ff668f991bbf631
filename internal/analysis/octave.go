// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"cqtscope/internal/cqt"
	applog "cqtscope/internal/log"
	"cqtscope/internal/transport"

	"gonum.org/v1/gonum/floats"
)

// OctaveBand is the energy of one octave of CQT bins.
type OctaveBand struct {
	Index  int     `json:"index"`
	LowHz  float64 `json:"lowHz"`
	HighHz float64 `json:"highHz"`
	RMS    float64 `json:"rms"`
}

// OctaveSummary is the per-frame message produced by OctaveProcessor.
type OctaveSummary struct {
	Type    string       `json:"type"`
	Seq     uint64       `json:"seq"`
	Bands   []OctaveBand `json:"bands"`
	PeakBin int          `json:"peakBin"`
	PeakHz  float64      `json:"peakHz"`
}

// OctaveProcessor groups CQT bins into octaves and sends an RMS summary
// of each frame to a transport.
type OctaveProcessor struct {
	transport transport.Transport
	bank      *cqt.KernelBank
	summary   OctaveSummary // Bands is rewritten on every frame.
	scratch   []float64
	log       *applog.Logger
}

var _ Sink = (*OctaveProcessor)(nil)

// NewOctaveProcessor creates a processor for the bank's bin layout.
func NewOctaveProcessor(t transport.Transport, bank *cqt.KernelBank) (*OctaveProcessor, error) {
	if t == nil {
		return nil, fmt.Errorf("octave processor requires a transport")
	}
	if bank == nil {
		return nil, fmt.Errorf("octave processor: %w", cqt.ErrInvalidParams)
	}

	bpo := bank.Params().BinsPerOctave
	n := (bank.Bins() + bpo - 1) / bpo
	bands := make([]OctaveBand, n)
	for i := range bands {
		lo := float64(bank.Frequency(i * bpo))
		bands[i] = OctaveBand{Index: i, LowHz: lo, HighHz: lo * 2}
	}

	p := &OctaveProcessor{
		transport: t,
		bank:      bank,
		summary:   OctaveSummary{Type: "octaves", Bands: bands},
		scratch:   make([]float64, bank.Bins()),
		log:       applog.Named("Octaves"),
	}
	p.log.Infof("Initializing with %d octaves of %d bins", n, bpo)
	return p, nil
}

// Summarize computes the octave summary of spectrum. The returned Bands
// slice is reused by the next call.
func (p *OctaveProcessor) Summarize(spectrum cqt.Spectrum) (OctaveSummary, error) {
	if len(spectrum) != len(p.scratch) {
		return OctaveSummary{}, fmt.Errorf("%w: spectrum has %d bins, want %d", cqt.ErrFrameSize, len(spectrum), len(p.scratch))
	}
	for i, v := range spectrum {
		p.scratch[i] = float64(v)
	}

	s := &p.summary
	bpo := p.bank.Params().BinsPerOctave
	for i := range s.Bands {
		lo := i * bpo
		hi := min(lo+bpo, len(p.scratch))
		sub := p.scratch[lo:hi]
		s.Bands[i].RMS = math.Sqrt(floats.Dot(sub, sub) / float64(len(sub)))
	}

	s.Seq++
	s.PeakBin = floats.MaxIdx(p.scratch)
	s.PeakHz = float64(p.bank.Frequency(s.PeakBin))
	return *s, nil
}

// Emit summarizes spectrum and sends the result.
func (p *OctaveProcessor) Emit(spectrum cqt.Spectrum) error {
	if _, err := p.Summarize(spectrum); err != nil {
		return err
	}
	if err := p.transport.Send(&p.summary); err != nil {
		return fmt.Errorf("octave summary send failed: %w", err)
	}
	return nil
}

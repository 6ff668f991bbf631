// SPDX-License-Identifier: MIT
package analysis

import "cqtscope/internal/cqt"

// Sink receives every computed spectrum. The spectrum is owned by the
// loop and is overwritten on the next cycle; implementations that keep
// it must copy.
type Sink interface {
	Emit(spectrum cqt.Spectrum) error
}

// FrameTap observes every fully filled frame before it is transformed.
type FrameTap interface {
	Record(frame []float32) error
}

// FrameFilter may modify a frame in place before it is transformed. It
// reports whether the frame passed.
type FrameFilter interface {
	Apply(frame []float32) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(spectrum cqt.Spectrum) error

func (f SinkFunc) Emit(spectrum cqt.Spectrum) error { return f(spectrum) }

// SPDX-License-Identifier: MIT
/*
Package audio supplies fixed-length frames of float32 samples to the
analysis loop.

Every backend implements FrameSource. A Fill call either overwrites the
whole buffer with fresh samples or fails with a *SourceError; a failed
frame must never be transformed. Backends are selected once at startup
through OpenSource and owned by the loop for the rest of the run.

Backends:
- capture: live capture through PortAudio blocking reads
- stream:  raw native-endian float32 from a pipe, FIFO or stdin
- wav:     PCM WAV file, optionally looped
*/
package audio

import (
	"fmt"
	"sort"

	"cqtscope/internal/config"

	"github.com/pkg/errors"
)

// FrameSource fills caller-owned sample buffers.
type FrameSource interface {
	// Fill overwrites every element of buf with a fresh mono sample or
	// returns a *SourceError. On error the buffer contents are unspecified.
	Fill(buf []float32) error
	Close() error
}

// ErrorKind classifies a source failure.
type ErrorKind int

const (
	DeviceUnavailable ErrorKind = iota + 1 // Backend could not be opened or vanished.
	ReadFailed                             // A read returned an error or stalled.
	StreamClosed                           // The stream ended or was truncated.
)

// Sentinels for errors.Is checks against a *SourceError.
var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrReadFailed        = errors.New("read failed")
	ErrStreamClosed      = errors.New("stream closed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case DeviceUnavailable:
		return ErrDeviceUnavailable
	case ReadFailed:
		return ErrReadFailed
	case StreamClosed:
		return ErrStreamClosed
	default:
		return nil
	}
}

// String returns the classification name.
func (k ErrorKind) String() string {
	switch k {
	case DeviceUnavailable:
		return "DeviceUnavailable"
	case ReadFailed:
		return "ReadFailed"
	case StreamClosed:
		return "StreamClosed"
	default:
		return "Unknown"
	}
}

// SourceError is the typed failure every FrameSource returns.
type SourceError struct {
	Kind ErrorKind
	Op   string // Backend operation, e.g. "capture.fill".
	Err  error  // Underlying cause, may be nil.
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.sentinel(), e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *SourceError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func sourceErr(kind ErrorKind, op string, err error) error {
	return &SourceError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err.
func KindOf(err error) (ErrorKind, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// Opener builds a FrameSource from configuration.
type Opener func(cfg *config.Config) (FrameSource, error)

var sources = map[string]Opener{}

// RegisterSource registers a backend under name. This function is not
// thread-safe; call it from init().
func RegisterSource(name string, open Opener) {
	sources[name] = open
}

// SourceNames lists the registered backends in sorted order.
func SourceNames() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenSource opens the backend named by cfg.Source.Type.
func OpenSource(cfg *config.Config) (FrameSource, error) {
	open, ok := sources[cfg.Source.Type]
	if !ok {
		return nil, sourceErr(DeviceUnavailable, "open",
			errors.Errorf("unknown source %q; available: %v", cfg.Source.Type, SourceNames()))
	}
	src, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func init() {
	RegisterSource(config.SourceCapture, func(cfg *config.Config) (FrameSource, error) {
		return OpenCapture(CaptureOptions{
			DeviceID:      cfg.Source.Device,
			Channels:      cfg.Source.Channels,
			SampleRate:    float64(cfg.Analysis.SampleRate),
			FramesPerRead: cfg.Source.FramesPerRead,
			LowLatency:    cfg.Source.LowLatency,
			Downmix:       ParseDownmix(cfg.Source.Downmix),
			StallTimeout:  cfg.Source.StallTimeout,
		})
	})
	RegisterSource(config.SourceStream, func(cfg *config.Config) (FrameSource, error) {
		return OpenStream(cfg.Source.Path, cfg.Source.Channels, ParseDownmix(cfg.Source.Downmix))
	})
	RegisterSource(config.SourceWAV, func(cfg *config.Config) (FrameSource, error) {
		return OpenWAV(cfg.Source.Path, WAVOptions{
			SampleRate: cfg.Analysis.SampleRate,
			Loop:       cfg.Source.Loop,
			Downmix:    ParseDownmix(cfg.Source.Downmix),
		})
	})
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cqtscope/internal/audio"
	"cqtscope/internal/cqt"
	applog "cqtscope/internal/log"
)

// State is the loop's position in its Fill, Transform, Emit cycle.
type State int32

const (
	Idle State = iota
	Filling
	Transforming
	Emitting
	Paused
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Filling:
		return "Filling"
	case Transforming:
		return "Transforming"
	case Emitting:
		return "Emitting"
	case Paused:
		return "Paused"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

var (
	ErrLoopRunning    = errors.New("analysis loop already running")
	ErrLoopTerminated = errors.New("analysis loop terminated")
	ErrNoSource       = errors.New("analysis loop requires a frame source")
)

// LoopConfig wires the loop's collaborators.
type LoopConfig struct {
	Engine *cqt.Engine
	Source audio.FrameSource
	Sinks  []Sink
	Taps   []FrameTap
	Filter FrameFilter // Optional, e.g. a noise gate.

	MaxRetries   int           // Consecutive failed fills tolerated per frame.
	RetryBackoff time.Duration // Wait before retry n is n*RetryBackoff.
	StopOnEOF    bool          // Treat StreamClosed as a clean end of input.
}

// Loop runs the capture, transform and emit cycle on a single goroutine.
// Cancellation and pause requests are observed between cycles only.
type Loop struct {
	cfg LoopConfig
	log *applog.Logger

	frame    []float32
	spectrum cqt.Spectrum

	state   atomic.Int32
	running atomic.Bool
	paused  atomic.Bool
	wake    chan struct{}

	frames  atomic.Uint64
	retries atomic.Uint64
}

// NewLoop validates cfg and allocates the frame and spectrum buffers.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("analysis: %w", cqt.ErrInvalidParams)
	}
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	l := &Loop{
		cfg:      cfg,
		log:      applog.Named("Loop"),
		frame:    make([]float32, cfg.Engine.Bank().FFTSize()),
		spectrum: cfg.Engine.NewSpectrum(),
		wake:     make(chan struct{}, 1),
	}
	l.state.Store(int32(Idle))
	return l, nil
}

// State returns the current state. Safe for concurrent use.
func (l *Loop) State() State { return State(l.state.Load()) }

// Frames returns the number of spectra emitted.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// Retries returns the number of failed fills that were retried.
func (l *Loop) Retries() uint64 { return l.retries.Load() }

// Pause asks the loop to idle after the current cycle.
func (l *Loop) Pause() { l.paused.Store(true) }

// Resume continues a paused loop.
func (l *Loop) Resume() {
	l.paused.Store(false)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run cycles until ctx is cancelled, the source is exhausted with
// StopOnEOF set, or the source fails more than MaxRetries times in a row.
// A loop can be run once.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() == Terminated {
		return ErrLoopTerminated
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.setState(Terminated)

	l.log.Infof("Started (fft size %d, %d bins)", len(l.frame), len(l.spectrum))

	for {
		if ctx.Err() != nil {
			l.log.Infof("Stopping after %d frames", l.Frames())
			return nil
		}
		if l.paused.Load() {
			if err := l.waitResume(ctx); err != nil {
				return nil
			}
			continue
		}

		l.setState(Filling)
		if err := l.fill(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if l.cfg.StopOnEOF && errors.Is(err, audio.ErrStreamClosed) {
				l.log.Infof("Input exhausted after %d frames", l.Frames())
				return nil
			}
			return err
		}

		for _, tap := range l.cfg.Taps {
			if err := tap.Record(l.frame); err != nil {
				l.log.Warnf("Frame tap error: %v", err)
			}
		}
		if l.cfg.Filter != nil {
			l.cfg.Filter.Apply(l.frame)
		}

		l.setState(Transforming)
		if err := l.cfg.Engine.Compute(l.frame, l.spectrum); err != nil {
			return fmt.Errorf("analysis: transform failed: %w", err)
		}

		l.setState(Emitting)
		for _, sink := range l.cfg.Sinks {
			if err := sink.Emit(l.spectrum); err != nil {
				l.log.Warnf("Sink error: %v", err)
			}
		}
		l.frames.Add(1)
	}
}

// fill retries the source with linear backoff. The frame buffer is only
// handed on after a successful Fill.
func (l *Loop) fill(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := l.cfg.Source.Fill(l.frame)
		if err == nil {
			return nil
		}
		if l.cfg.StopOnEOF && errors.Is(err, audio.ErrStreamClosed) {
			return err
		}
		if attempt >= l.cfg.MaxRetries {
			kind, _ := audio.KindOf(err)
			return fmt.Errorf("analysis: frame source failed (%s) after %d retries: %w", kind, attempt, err)
		}

		l.retries.Add(1)
		backoff := l.cfg.RetryBackoff * time.Duration(attempt+1)
		l.log.Warnf("Fill failed, retry %d/%d in %s: %v", attempt+1, l.cfg.MaxRetries, backoff, err)
		if backoff <= 0 {
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) waitResume(ctx context.Context) error {
	l.setState(Paused)
	l.log.Debugf("Paused")
	for l.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
	l.log.Debugf("Resumed")
	return nil
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	applog "cqtscope/internal/log"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

var captureLog = applog.Named("Capture")

// captureDevice delivers mono samples. Read may return fewer samples than
// len(dst), including zero.
type captureDevice interface {
	Read(dst []float32) (int, error)
	Close() error
}

// CaptureOptions configures a live capture source.
type CaptureOptions struct {
	DeviceID      int
	Channels      int
	SampleRate    float64
	FramesPerRead int
	LowLatency    bool
	Downmix       Downmix
	StallTimeout  time.Duration // Zero waits forever for a full frame.
}

// CaptureSource fills frames from a blocking capture device, accumulating
// partial reads until the buffer is full.
type CaptureSource struct {
	dev          captureDevice
	stallTimeout time.Duration
	now          func() time.Time
}

var _ FrameSource = (*CaptureSource)(nil)

func newCaptureSource(dev captureDevice, stallTimeout time.Duration) *CaptureSource {
	return &CaptureSource{dev: dev, stallTimeout: stallTimeout, now: time.Now}
}

// OpenCapture opens and starts a PortAudio input stream.
// Initialize must have been called.
func OpenCapture(opts CaptureOptions) (*CaptureSource, error) {
	device, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, sourceErr(DeviceUnavailable, "capture.open", err)
	}
	if opts.Channels < 1 || opts.Channels > device.MaxInputChannels {
		return nil, sourceErr(DeviceUnavailable, "capture.open",
			errors.Errorf("device %q has %d input channels, %d requested",
				device.Name, device.MaxInputChannels, opts.Channels))
	}
	if opts.FramesPerRead <= 0 {
		return nil, sourceErr(DeviceUnavailable, "capture.open",
			errors.Errorf("frames per read must be positive, got %d", opts.FramesPerRead))
	}

	latency := device.DefaultHighInputLatency
	if opts.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	pa := &paCapture{
		raw:      make([]float32, opts.FramesPerRead*opts.Channels),
		mono:     make([]float32, opts.FramesPerRead),
		channels: opts.Channels,
		mode:     opts.Downmix,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: opts.Channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: opts.FramesPerRead,
		SampleRate:      opts.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, pa.raw)
	if err != nil {
		return nil, sourceErr(DeviceUnavailable, "capture.open", errors.Wrap(err, "open stream"))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, sourceErr(DeviceUnavailable, "capture.open", errors.Wrap(err, "start stream"))
	}
	pa.stream = stream

	captureLog.Infof("Opened %q, %d ch @ %.0f Hz, %d frames per read, latency %s",
		device.Name, opts.Channels, opts.SampleRate, opts.FramesPerRead, latency)

	return newCaptureSource(pa, opts.StallTimeout), nil
}

// Fill blocks until buf holds len(buf) fresh samples.
func (s *CaptureSource) Fill(buf []float32) error {
	filled := 0
	var stalledSince time.Time

	for filled < len(buf) {
		n, err := s.dev.Read(buf[filled:])
		if err != nil {
			return sourceErr(ReadFailed, "capture.fill", err)
		}
		if n > 0 {
			filled += n
			stalledSince = time.Time{}
			continue
		}
		if s.stallTimeout <= 0 {
			continue
		}
		now := s.now()
		if stalledSince.IsZero() {
			stalledSince = now
		} else if now.Sub(stalledSince) >= s.stallTimeout {
			return sourceErr(ReadFailed, "capture.fill",
				errors.Errorf("no samples for %s with %d of %d filled", s.stallTimeout, filled, len(buf)))
		}
	}
	return nil
}

// Close stops the underlying device.
func (s *CaptureSource) Close() error {
	return s.dev.Close()
}

// paCapture adapts a blocking PortAudio stream to captureDevice. Each
// stream read yields FramesPerRead frames; samples not consumed by the
// current Fill are kept for the next one.
type paCapture struct {
	stream   *portaudio.Stream
	raw      []float32 // Interleaved, bound to the stream.
	mono     []float32
	pending  []float32
	channels int
	mode     Downmix
}

func (c *paCapture) Read(dst []float32) (int, error) {
	if len(c.pending) == 0 {
		if err := c.stream.Read(); err != nil {
			if err != portaudio.InputOverflowed {
				return 0, errors.Wrap(err, "stream read")
			}
			captureLog.Debugf("Input overflowed")
		}
		downmix(c.mono, c.raw, c.channels, c.mode)
		c.pending = c.mono
	}
	n := copy(dst, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *paCapture) Close() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		c.stream = nil
		return errors.Wrap(err, "stop stream")
	}
	err := c.stream.Close()
	c.stream = nil
	return errors.Wrap(err, "close stream")
}

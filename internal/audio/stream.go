// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// StdinPath selects standard input as the stream source.
const StdinPath = "-"

// StreamSource reads interleaved native-endian float32 samples from a
// byte stream such as a named pipe or stdin.
type StreamSource struct {
	r        io.Reader
	closer   io.Closer
	channels int
	mode     Downmix
	order    binary.ByteOrder

	raw         []byte
	interleaved []float32
}

var _ FrameSource = (*StreamSource)(nil)

// NewStreamSource wraps r. If r is an io.Closer it is closed by Close.
func NewStreamSource(r io.Reader, channels int, mode Downmix) *StreamSource {
	if channels < 1 {
		channels = 1
	}
	s := &StreamSource{
		r:        r,
		channels: channels,
		mode:     mode,
		order:    binary.NativeEndian,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenStream opens path for reading; "-" reads stdin.
func OpenStream(path string, channels int, mode Downmix) (*StreamSource, error) {
	if path == StdinPath {
		return NewStreamSource(os.Stdin, channels, mode), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, sourceErr(DeviceUnavailable, "stream.open", errors.Wrap(err, "open stream"))
	}
	return NewStreamSource(f, channels, mode), nil
}

// Fill reads exactly len(buf) frames. A short read at end of stream is
// reported as StreamClosed and the partial frame is dropped.
func (s *StreamSource) Fill(buf []float32) error {
	if s.r == nil {
		return sourceErr(StreamClosed, "stream.fill", nil)
	}

	samples := len(buf) * s.channels
	if cap(s.raw) < samples*4 {
		s.raw = make([]byte, samples*4)
		s.interleaved = make([]float32, samples)
	}
	raw := s.raw[:samples*4]

	if _, err := io.ReadFull(s.r, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
			errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return sourceErr(StreamClosed, "stream.fill", err)
		}
		return sourceErr(ReadFailed, "stream.fill", err)
	}

	dst := buf
	if s.channels > 1 {
		dst = s.interleaved[:samples]
	}
	for i := range dst {
		dst[i] = math.Float32frombits(s.order.Uint32(raw[i*4:]))
	}
	if s.channels > 1 {
		downmix(buf, dst, s.channels, s.mode)
	}
	return nil
}

// Close closes the underlying reader when it is closable. Stdin is left open.
func (s *StreamSource) Close() error {
	if s.closer == nil || s.closer == os.Stdin {
		s.r = nil
		return nil
	}
	err := s.closer.Close()
	s.r, s.closer = nil, nil
	return err
}

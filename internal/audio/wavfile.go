// SPDX-License-Identifier: MIT
package audio

import (
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WAVOptions configures a WAV file source.
type WAVOptions struct {
	SampleRate int // Expected rate; zero accepts any.
	Loop       bool
	Downmix    Downmix
}

// WAV format tags accepted by WAVSource.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// WAVSource decodes integer PCM or 32-bit float WAV data into normalised
// mono frames.
type WAVSource struct {
	closer   io.Closer
	dec      *wav.Decoder
	loop     bool
	mode     Downmix
	channels int
	scale    float32
	float    bool // Samples carry IEEE float bits.

	pcm         *audio.IntBuffer
	interleaved []float32
}

var _ FrameSource = (*WAVSource)(nil)

// OpenWAV opens and validates the WAV file at path.
func OpenWAV(path string, opts WAVOptions) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sourceErr(DeviceUnavailable, "wav.open", errors.Wrap(err, "open wav"))
	}
	s, err := NewWAVSource(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewWAVSource decodes from rs, which must be positioned at the RIFF header.
func NewWAVSource(rs io.ReadSeeker, opts WAVOptions) (*WAVSource, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, sourceErr(DeviceUnavailable, "wav.open", errors.New("not a valid PCM wav file"))
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		return nil, sourceErr(DeviceUnavailable, "wav.open", errors.New("missing format chunk"))
	}
	if opts.SampleRate > 0 && format.SampleRate != opts.SampleRate {
		return nil, sourceErr(DeviceUnavailable, "wav.open",
			errors.Errorf("sample rate %d Hz does not match analysis rate %d Hz", format.SampleRate, opts.SampleRate))
	}

	var scale float32
	switch dec.WavAudioFormat {
	case wavFormatPCM:
		switch dec.BitDepth {
		case 16, 24, 32:
			scale = 1 / float32(int64(1)<<(dec.BitDepth-1))
		default:
			return nil, sourceErr(DeviceUnavailable, "wav.open", errors.Errorf("unsupported bit depth %d", dec.BitDepth))
		}
	case wavFormatFloat:
		// The decoder hands back the raw 32-bit words.
		if dec.BitDepth != 32 {
			return nil, sourceErr(DeviceUnavailable, "wav.open", errors.Errorf("unsupported float bit depth %d", dec.BitDepth))
		}
	default:
		return nil, sourceErr(DeviceUnavailable, "wav.open", errors.Errorf("unsupported wav format %d", dec.WavAudioFormat))
	}

	return &WAVSource{
		dec:      dec,
		loop:     opts.Loop,
		mode:     opts.Downmix,
		channels: format.NumChannels,
		scale:    scale,
		float:    dec.WavAudioFormat == wavFormatFloat,
		pcm:      &audio.IntBuffer{Format: format, SourceBitDepth: int(dec.BitDepth)},
	}, nil
}

// Channels returns the file's channel count.
func (s *WAVSource) Channels() int { return s.channels }

// Fill decodes len(buf) frames. At end of data the source rewinds when
// looping, otherwise it reports StreamClosed.
func (s *WAVSource) Fill(buf []float32) error {
	if s.dec == nil {
		return sourceErr(StreamClosed, "wav.fill", nil)
	}

	total := len(buf) * s.channels
	if cap(s.pcm.Data) < total {
		s.pcm.Data = make([]int, total)
		s.interleaved = make([]float32, total)
	}

	filled := 0
	rewound := false
	for filled < len(buf) {
		s.pcm.Data = s.pcm.Data[:(len(buf)-filled)*s.channels]
		n, err := s.dec.PCMBuffer(s.pcm)
		if err != nil && !errors.Is(err, io.EOF) {
			return sourceErr(ReadFailed, "wav.fill", err)
		}

		frames := n / s.channels
		if frames == 0 {
			if !s.loop || rewound {
				return sourceErr(StreamClosed, "wav.fill", io.EOF)
			}
			if err := s.dec.Rewind(); err != nil {
				return sourceErr(ReadFailed, "wav.fill", errors.Wrap(err, "rewind"))
			}
			rewound = true
			continue
		}
		rewound = false

		in := s.interleaved[:frames*s.channels]
		if s.float {
			for i := range in {
				in[i] = math.Float32frombits(uint32(s.pcm.Data[i]))
			}
		} else {
			for i := range in {
				in[i] = float32(s.pcm.Data[i]) * s.scale
			}
		}
		downmix(buf[filled:filled+frames], in, s.channels, s.mode)
		filled += frames
	}
	return nil
}

// Close releases the underlying file, if any.
func (s *WAVSource) Close() error {
	s.dec = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

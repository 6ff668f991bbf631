// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes analysed frames to a mono PCM WAV file.
type Recorder struct {
	sampleRate int
	bitDepth   int

	mu          sync.Mutex
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer
	maxInt      float32
}

// NewRecorder returns an idle recorder.
func NewRecorder(sampleRate, bitDepth int) *Recorder {
	return &Recorder{sampleRate: sampleRate, bitDepth: bitDepth}
}

// IsRecording reports whether a file is open.
func (r *Recorder) IsRecording() bool { return r.isRecording.Load() }

func (r *Recorder) StartRecording(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return fmt.Errorf("already recording")
	}
	switch r.bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", r.bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, 1, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  r.sampleRate,
		},
		SourceBitDepth: r.bitDepth,
	}
	r.maxInt = float32(int64(1)<<(r.bitDepth-1) - 1)

	r.isRecording.Store(true)
	return nil
}

// Record appends frame to the open file. It is a no-op when not recording.
func (r *Recorder) Record(frame []float32) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(frame) {
		r.sampleBuf.Data = make([]int, len(frame))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(frame)]
	for i, v := range frame {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		r.sampleBuf.Data[i] = int(v * r.maxInt)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	return nil
}

func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording.Load() {
		return nil
	}
	r.isRecording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			r.outputFile.Close()
			r.wavEncoder, r.outputFile = nil, nil
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			r.outputFile = nil
			return err
		}
		r.outputFile = nil
	}

	return nil
}

// Close stops any active recording.
func (r *Recorder) Close() error {
	return r.StopRecording()
}

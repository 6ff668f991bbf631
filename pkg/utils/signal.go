// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and doubles shared by tests
// across the module.
package utils

import (
	"encoding/binary"
	"math"
	"sync"
)

// MockTransport records what it is sent instead of transmitting.
type MockTransport struct {
	mu       sync.Mutex
	LastData any
	Sends    int
	Closed   bool
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.LastData = data
	m.Sends++
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Snapshot returns the last payload and the number of sends so far.
func (m *MockTransport) Snapshot() (any, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastData, m.Sends
}

// GenerateSineWave returns size samples of a sine at frequency Hz with
// the given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency float64, amplitude float32) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * float32(math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// peaking just below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Interleave repeats every mono sample across channels, producing an
// interleaved multi-channel buffer.
func Interleave(mono []float32, channels int) []float32 {
	out := make([]float32, len(mono)*channels)
	for i, v := range mono {
		for c := range channels {
			out[i*channels+c] = v
		}
	}
	return out
}

// EncodeFloat32 packs samples as raw float32 values in the given byte
// order, the format a raw float pipe delivers.
func EncodeFloat32(samples []float32, order binary.ByteOrder) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		order.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

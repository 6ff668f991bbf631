// SPDX-License-Identifier: MIT
package audio

import (
	"path/filepath"
	"testing"
)

func TestRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	rec := NewRecorder(44100, 16)

	if err := rec.StartRecording(path); err != nil {
		t.Fatalf("StartRecording error: %v", err)
	}
	if !rec.IsRecording() {
		t.Fatal("expected IsRecording after start")
	}
	if err := rec.StartRecording(path); err == nil {
		t.Error("expected error when already recording")
	}

	frames := [][]float32{
		{0.5, -0.5, 0.25, 1.5},
		{-2, 0, 0.125, -0.25},
	}
	for _, f := range frames {
		if err := rec.Record(f); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}
	if err := rec.StopRecording(); err != nil {
		t.Fatalf("StopRecording error: %v", err)
	}
	if rec.IsRecording() {
		t.Error("expected recording to stop")
	}

	src, err := OpenWAV(path, WAVOptions{SampleRate: 44100})
	if err != nil {
		t.Fatalf("OpenWAV on recording: %v", err)
	}
	defer src.Close()

	got := make([]float32, 8)
	if err := src.Fill(got); err != nil {
		t.Fatalf("Fill error: %v", err)
	}
	// Out-of-range samples are clipped.
	want := []float32{0.5, -0.5, 0.25, 1, -1, 0, 0.125, -0.25}
	for i := range want {
		if d := got[i] - want[i]; d > 1e-4 || d < -1e-4 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRecorder_IdleIsNoop(t *testing.T) {
	rec := NewRecorder(44100, 16)
	if err := rec.Record([]float32{0.1, 0.2}); err != nil {
		t.Errorf("Record on idle recorder: %v", err)
	}
	if err := rec.StopRecording(); err != nil {
		t.Errorf("StopRecording on idle recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Close on idle recorder: %v", err)
	}
}

func TestRecorder_Errors(t *testing.T) {
	t.Run("Bad bit depth", func(t *testing.T) {
		rec := NewRecorder(44100, 8)
		if err := rec.StartRecording(filepath.Join(t.TempDir(), "x.wav")); err == nil {
			t.Error("expected error for 8-bit recording")
		}
	})
	t.Run("Bad path", func(t *testing.T) {
		rec := NewRecorder(44100, 16)
		if err := rec.StartRecording(filepath.Join(t.TempDir(), "missing", "x.wav")); err == nil {
			t.Error("expected error for unwritable path")
		}
		if rec.IsRecording() {
			t.Error("recorder should stay idle after failed start")
		}
	})
}

// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cqtscope/internal/cqt"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cqtscope.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}

	p := cfg.KernelParams()
	want := cqt.Params{SampleRate: 44100, FFTSize: 3500, FMin: 27.5, BinsPerOctave: 36, Bins: 324}
	if p != want {
		t.Errorf("KernelParams() = %+v, want %+v", p, want)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
analysis:
  sample_rate: 48000
  fft_size: 4096
  bins_per_octave: 24
source:
  type: stream
  path: /tmp/cqt.fifo
  channels: 2
  downmix: average
loop:
  max_retries: 5
  retry_backoff: 250ms
transport:
  udp_enabled: true
  udp_send_interval: 33ms
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Analysis.SampleRate != 48000 || cfg.Analysis.FFTSize != 4096 || cfg.Analysis.BinsPerOctave != 24 {
		t.Errorf("analysis overlay not applied: %+v", cfg.Analysis)
	}
	// Untouched keys keep their defaults.
	if cfg.Analysis.FMin != DefaultFMin || cfg.Analysis.Bins != DefaultBins {
		t.Errorf("analysis defaults lost: %+v", cfg.Analysis)
	}
	if cfg.Source.Type != SourceStream || cfg.Source.Channels != 2 || cfg.Source.Downmix != DownmixAverage {
		t.Errorf("source overlay not applied: %+v", cfg.Source)
	}
	if cfg.Loop.MaxRetries != 5 || cfg.Loop.RetryBackoff != 250*time.Millisecond {
		t.Errorf("loop overlay not applied: %+v", cfg.Loop)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("transport overlay not applied: %+v", cfg.Transport)
	}
}

func TestLoadConfig_InvalidKernelParams(t *testing.T) {
	path := writeTempConfig(t, "analysis:\n  bins_per_octave: 1\n")

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !errors.Is(err, cqt.ErrInvalidParams) {
		t.Errorf("expected cqt.ErrInvalidParams in chain, got %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_SOURCE_TYPE", "wav")
	t.Setenv("ENV_SOURCE_PATH", "/tmp/in.wav")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Source.Type != SourceWAV || cfg.Source.Path != "/tmp/in.wav" {
		t.Errorf("source env overrides not applied: %+v", cfg.Source)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("transport env overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPSendInterval != DefaultUDPSendInterval {
		t.Errorf("unparseable interval should be ignored, got %s", cfg.Transport.UDPSendInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"Zero bins", func(c *Config) { c.Analysis.Bins = 0 }, "bin count"},
		{"Low sample rate", func(c *Config) { c.Analysis.SampleRate = 4000 }, "sample_rate"},
		{"Huge fft", func(c *Config) { c.Analysis.FFTSize = MaxFFTSize + 1 }, "fft_size"},
		{"Unknown source", func(c *Config) { c.Source.Type = "alsa" }, "source.type"},
		{"Stream without path", func(c *Config) { c.Source.Type = SourceStream }, "source.path"},
		{"Too many channels", func(c *Config) { c.Source.Channels = MaxChannels + 1 }, "source.channels"},
		{"Bad downmix", func(c *Config) { c.Source.Downmix = "sum" }, "source.downmix"},
		{"Negative stall timeout", func(c *Config) { c.Source.StallTimeout = -time.Second }, "stall_timeout"},
		{"Negative retries", func(c *Config) { c.Loop.MaxRetries = -1 }, "max_retries"},
		{"Gate threshold", func(c *Config) { c.Gate.Threshold = 2 }, "gate.threshold"},
		{"Bit depth", func(c *Config) { c.Recording.BitDepth = 8 }, "bit_depth"},
		{"Log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"UDP without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "missing port"},
		{"UDP zero interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "udp_send_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.substr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.substr)
			}
		})
	}
}

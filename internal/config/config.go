// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"cqtscope/internal/cqt"
)

// Core configuration constants that define the boundaries and defaults
// for the analysis pipeline.
const (
	// Analysis defaults: nine octaves of third-semitone bins above A0.
	DefaultSampleRate    = 44100 // CD-quality audio
	DefaultFFTSize       = 3500  // Shared kernel/frame length
	DefaultFMin          = 27.5  // A0
	DefaultBinsPerOctave = 36    // Three bins per semitone
	DefaultBins          = 324   // Nine octaves

	// Source defaults
	DefaultSourceType    = SourceCapture
	DefaultDeviceID      = MinDeviceID // System default device
	DefaultChannels      = 1           // Mono capture
	DefaultFramesPerRead = 512         // Device read granularity
	DefaultStallTimeout  = 2 * time.Second
	DefaultDownmix       = DownmixFirst

	// Loop defaults
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 100 * time.Millisecond

	// Recording defaults
	DefaultBitDepth = 16

	// Gate defaults
	DefaultGateThreshold = 0.001 // ~-60 dBFS

	// Transport defaults
	DefaultWebSocketAddr    = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60Hz

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxChannels   = 8      // Interleaved channels accepted at the source boundary
	MaxFFTSize    = 65536  // Largest shared kernel buffer
)

// Source types.
const (
	SourceCapture = "capture" // Live capture device (PortAudio)
	SourceStream  = "stream"  // Raw float32 byte stream (pipe, FIFO, stdin)
	SourceWAV     = "wav"     // WAV file
)

// Commands selected on the command line.
const (
	CommandRun     = "run"     // Run the analysis loop.
	CommandList    = "list"    // Print host audio devices.
	CommandDevices = "devices" // Pick a capture device interactively, then run.
	CommandKernels = "kernels" // Print a kernel bank report.
)

// Downmix modes.
const (
	DownmixFirst   = "first"   // Keep channel 0
	DownmixAverage = "average" // Mean of all channels
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Command   string          `yaml:"-"`         // One-off command to execute instead of running the loop.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Kernel bank parameters.
	Source    SourceConfig    `yaml:"source"`    // Frame source settings.
	Loop      LoopConfig      `yaml:"loop"`      // Analysis loop retry policy.
	Gate      GateConfig      `yaml:"gate"`      // Noise gate applied before the transform.
	Recording RecordingConfig `yaml:"recording"` // Frame recording settings.
	Transport TransportConfig `yaml:"transport"` // Spectrum publishing settings.
}

// AnalysisConfig holds the kernel bank parameters.
type AnalysisConfig struct {
	SampleRate    int     `yaml:"sample_rate"`     // Sample rate in Hz.
	FFTSize       int     `yaml:"fft_size"`        // Frame length and kernel buffer size in samples.
	FMin          float64 `yaml:"f_min"`           // Centre frequency of the lowest bin in Hz.
	BinsPerOctave int     `yaml:"bins_per_octave"` // Bins per octave, must be > 1.
	Bins          int     `yaml:"n_bins"`          // Number of bins.
}

// SourceConfig holds settings for the frame source.
type SourceConfig struct {
	Type          string        `yaml:"type"`            // One of "capture", "stream", "wav".
	Device        int           `yaml:"device"`          // PortAudio device index (-1 for default).
	Channels      int           `yaml:"channels"`        // Interleaved channels delivered by the source.
	Path          string        `yaml:"path"`            // Stream or WAV path ("-" for stdin).
	FramesPerRead int           `yaml:"frames_per_read"` // Frames requested per device read.
	LowLatency    bool          `yaml:"low_latency"`     // Request low latency settings from the device.
	Loop          bool          `yaml:"loop"`            // Rewind WAV sources at end of file.
	StallTimeout  time.Duration `yaml:"stall_timeout"`   // Fail a capture fill that makes no progress for this long (0 waits forever).
	Downmix       string        `yaml:"downmix"`         // "first" or "average".
}

// LoopConfig holds the analysis loop retry policy.
type LoopConfig struct {
	MaxRetries   int           `yaml:"max_retries"`   // Consecutive failed fills tolerated before giving up.
	RetryBackoff time.Duration `yaml:"retry_backoff"` // Base delay between retries, multiplied by the attempt number.
	StopOnEOF    bool          `yaml:"stop_on_eof"`   // Treat a closed stream as a clean shutdown.
}

// GateConfig holds noise gate settings.
type GateConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // Peak amplitude in [0, 1] below which frames are silenced.
}

// RecordingConfig holds settings related to frame recording.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record every analysed frame to a WAV file.
	OutputFile string `yaml:"output_file"` // Output path; generated when empty.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds settings related to publishing spectra.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast spectra as JSON over WebSocket.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send spectra as binary UDP packets.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// NewConfig creates a new Config instance with default values. This is
// the base configuration before a config file or flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			SampleRate:    DefaultSampleRate,
			FFTSize:       DefaultFFTSize,
			FMin:          DefaultFMin,
			BinsPerOctave: DefaultBinsPerOctave,
			Bins:          DefaultBins,
		},
		Source: SourceConfig{
			Type:          DefaultSourceType,
			Device:        DefaultDeviceID,
			Channels:      DefaultChannels,
			FramesPerRead: DefaultFramesPerRead,
			StallTimeout:  DefaultStallTimeout,
			Downmix:       DefaultDownmix,
		},
		Loop: LoopConfig{
			MaxRetries:   DefaultMaxRetries,
			RetryBackoff: DefaultRetryBackoff,
		},
		Gate: GateConfig{
			Threshold: DefaultGateThreshold,
		},
		Recording: RecordingConfig{
			BitDepth: DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// KernelParams converts the analysis section into kernel bank parameters.
func (c *Config) KernelParams() cqt.Params {
	return cqt.Params{
		SampleRate:    c.Analysis.SampleRate,
		FFTSize:       c.Analysis.FFTSize,
		FMin:          c.Analysis.FMin,
		BinsPerOctave: c.Analysis.BinsPerOctave,
		Bins:          c.Analysis.Bins,
	}
}

// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "cqtscope/internal/log"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "cqtscope.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations. If no file is found, it uses built-in defaults.
// After loading defaults or from file, it applies environment variable overrides
// and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			DefaultConfigFile,
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			// TODO:
			// Preallocate this error message.
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section. Kernel parameter errors keep their
// cqt.ErrInvalidParams classification in the chain.
func (c *Config) Validate() error {
	if err := c.KernelParams().Validate(); err != nil {
		return fmt.Errorf("%w: analysis: %w", ErrInvalidConfig, err)
	}
	if c.Analysis.SampleRate < MinSampleRate || c.Analysis.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: analysis.sample_rate %d outside [%d, %d]",
			ErrInvalidConfig, c.Analysis.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Analysis.FFTSize > MaxFFTSize {
		return fmt.Errorf("%w: analysis.fft_size %d exceeds %d", ErrInvalidConfig, c.Analysis.FFTSize, MaxFFTSize)
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	// Source Validation
	switch c.Source.Type {
	case SourceCapture:
		if c.Source.Device < MinDeviceID {
			return fmt.Errorf("%w: source.device %d is invalid", ErrInvalidConfig, c.Source.Device)
		}
		if c.Source.FramesPerRead <= 0 {
			return fmt.Errorf("%w: source.frames_per_read must be positive", ErrInvalidConfig)
		}
	case SourceStream, SourceWAV:
		if c.Source.Path == "" {
			return fmt.Errorf("%w: source.path must be set for %q sources", ErrInvalidConfig, c.Source.Type)
		}
	default:
		return fmt.Errorf("%w: unknown source.type %q", ErrInvalidConfig, c.Source.Type)
	}
	if c.Source.Channels < 1 || c.Source.Channels > MaxChannels {
		return fmt.Errorf("%w: source.channels %d outside [1, %d]", ErrInvalidConfig, c.Source.Channels, MaxChannels)
	}
	if c.Source.StallTimeout < 0 {
		return fmt.Errorf("%w: source.stall_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Source.Downmix != DownmixFirst && c.Source.Downmix != DownmixAverage {
		return fmt.Errorf("%w: unknown source.downmix %q", ErrInvalidConfig, c.Source.Downmix)
	}

	// Loop Validation
	if c.Loop.MaxRetries < 0 {
		return fmt.Errorf("%w: loop.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Loop.RetryBackoff < 0 {
		return fmt.Errorf("%w: loop.retry_backoff must not be negative", ErrInvalidConfig)
	}

	if c.Gate.Threshold < 0 || c.Gate.Threshold > 1 {
		return fmt.Errorf("%w: gate.threshold %g outside [0, 1]", ErrInvalidConfig, c.Gate.Threshold)
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: recording.bit_depth %d not one of 16, 24, 32", ErrInvalidConfig, c.Recording.BitDepth)
	}

	// Transport Validation
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		return fmt.Errorf("%w: transport.websocket_addr must be set when WebSocket is enabled", ErrInvalidConfig)
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("%w: transport.udp_target_address must be set when UDP is enabled", ErrInvalidConfig)
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("%w: transport.udp_target_address '%s' appears invalid (missing port?)",
				ErrInvalidConfig, c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalidConfig)
		}
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of file values. Values
// that fail to parse are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_SOURCE_{...}
	// These are specific to the frame source.

	// ENV_SOURCE_TYPE
	if val, ok := os.LookupEnv("ENV_SOURCE_TYPE"); ok {
		cfg.Source.Type = val
		applog.Infof("configuration: Overriding source.type from env: %s", val)
	}
	// ENV_SOURCE_PATH
	if val, ok := os.LookupEnv("ENV_SOURCE_PATH"); ok {
		cfg.Source.Path = val
		applog.Infof("configuration: Overriding source.path from env: %s", val)
	}
	// ENV_SOURCE_DEVICE
	if val, ok := os.LookupEnv("ENV_SOURCE_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Source.Device = iVal
			applog.Infof("configuration: Overriding source.device from env: %d", iVal)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WebSocketAddr = val
		applog.Infof("configuration: Overriding transport.websocket_addr from env: %s", val)
	}
}

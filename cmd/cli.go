// SPDX-License-Identifier: MIT
package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"cqtscope/internal/config"
	"cqtscope/pkg/build"

	"github.com/spf13/cobra"
)

// flagValues holds command line values before they are layered over the
// loaded configuration. Only flags the user actually set are applied.
type flagValues struct {
	configPath string
	source     string
	device     int
	input      string
	channels   int
	loop       bool
	stopOnEOF  bool
	record     bool
	output     string
	gate       float64
	websocket  bool
	udp        bool
	verbose    bool
}

// ParseArgs parses args (without the program name) and returns the final
// configuration. Config.Command is empty when only help or version output
// was requested.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		flags   flagValues
		options *config.Config
	)

	// load reads the config file and applies any flags set on cmd.
	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &flags, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.Command = command
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, config.CommandRun)
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, config.CommandList)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Choose a capture device interactively, then start analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, config.CommandDevices)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "kernels",
		Short: "Print the kernel bank geometry and measured peak frequencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, config.CommandKernels)
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML config file (default ./"+config.DefaultConfigFile+" if present)")

	// Source Configuration
	pf.StringVar(&flags.source, "source", config.DefaultSourceType,
		"Frame source: capture, stream or wav")
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.StringVarP(&flags.input, "input", "i", "",
		"Stream or WAV input path ('-' for stdin); implies --source from the extension")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of interleaved input channels (downmixed to mono)")
	pf.BoolVar(&flags.loop, "loop", false, "Rewind WAV input at end of file")
	pf.BoolVar(&flags.stopOnEOF, "stop-on-eof", false, "Exit cleanly when the input stream ends")
	pf.Float64Var(&flags.gate, "gate", config.DefaultGateThreshold,
		"Enable the noise gate with this peak threshold (0.0-1.0)")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record analysed frames to a WAV file")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transport Configuration
	pf.BoolVar(&flags.websocket, "websocket", false, "Broadcast spectra over WebSocket")
	pf.BoolVar(&flags.udp, "udp", false, "Send spectra as UDP packets")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options == nil {
		// Help or version output only.
		return config.NewConfig(), nil
	}
	return options, nil
}

func applyFlags(cmd *cobra.Command, f *flagValues, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("input") {
		cfg.Source.Path = f.input
		if !changed("source") {
			cfg.Source.Type = sourceForPath(f.input)
		}
	}
	if changed("source") {
		cfg.Source.Type = f.source
	}
	if changed("device") {
		cfg.Source.Device = f.device
	}
	if changed("channels") {
		cfg.Source.Channels = f.channels
	}
	if changed("loop") {
		cfg.Source.Loop = f.loop
	}
	if changed("stop-on-eof") {
		cfg.Loop.StopOnEOF = f.stopOnEOF
	}
	if changed("gate") {
		cfg.Gate.Enabled = true
		cfg.Gate.Threshold = f.gate
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = f.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = f.udp
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	// Defaults
	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}

func sourceForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return config.SourceWAV
	}
	return config.SourceStream
}

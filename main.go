// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"cqtscope/cmd"
	"cqtscope/internal/analysis"
	"cqtscope/internal/audio"
	"cqtscope/internal/config"
	"cqtscope/internal/cqt"
	applog "cqtscope/internal/log"
	"cqtscope/internal/transport"
	"cqtscope/internal/transport/udp"
	"cqtscope/internal/tui"
	"cqtscope/pkg/bitint"
	"cqtscope/pkg/build"
)

// main is the entry point for the analyser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Build the kernel bank (all configuration errors surface here)
//   - Execute one-off commands if requested
//
// 2. Hot Path:
//   - Open the frame source, sinks and publishers
//   - Run the Fill, Transform, Emit loop on this goroutine
//
// 3. Shutdown Phase (Cold Path):
//   - Cancel on SIGINT/SIGTERM, observed between cycles
//   - Finalize the recording, stop publishers, close the source
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development build info", err)
	}

	// One thread for the analysis loop, one for publishers and I/O.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg.Command == "" {
		return
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)

	if err := execute(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

// execute dispatches the selected command.
func execute(cfg *config.Config) error {
	switch cfg.Command {
	case config.CommandList:
		return withPortAudio(func() error { return audio.ListDevices(os.Stdout) })

	case config.CommandKernels:
		bank, err := cqt.NewKernelBank(cfg.KernelParams())
		if err != nil {
			return err
		}
		return printKernels(os.Stdout, bank)

	case config.CommandDevices:
		var (
			sel tui.Selection
			ok  bool
		)
		err := withPortAudio(func() (err error) {
			sel, ok, err = tui.RunDevicePicker(audio.HostDevices)
			return err
		})
		if err != nil || !ok {
			return err
		}
		cfg.Source.Type = config.SourceCapture
		cfg.Source.Device = sel.DeviceID
		cfg.Source.Channels = sel.Channels
		cfg.Analysis.SampleRate = int(sel.SampleRate)
		if err := cfg.Validate(); err != nil {
			return err
		}
		applog.Infof("Selected %q: %d ch @ %.0f Hz", sel.DeviceName, sel.Channels, sel.SampleRate)
		return run(cfg)

	case config.CommandRun:
		return run(cfg)

	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return fn()
}

// run owns every resource of the hot path and releases them on return.
func run(cfg *config.Config) error {
	bank, err := cqt.NewKernelBank(cfg.KernelParams())
	if err != nil {
		return err
	}
	engine, err := cqt.NewEngine(bank)
	if err != nil {
		return err
	}
	applog.Infof("Analysis: %d bins from %.2f Hz, %d per octave, Q %.2f, frame %d samples",
		bank.Bins(), bank.Frequency(0), cfg.Analysis.BinsPerOctave, bank.Q(), bank.FFTSize())

	// ==================== HOT PATH SETUP ====================

	if cfg.Source.Type == config.SourceCapture {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	src, err := audio.OpenSource(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			applog.Warnf("Source: close: %v", err)
		}
	}()

	hub := transport.NewHub(bank)
	sinks := []analysis.Sink{hub}
	defer hub.Close()

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		ws.Start()
		hub.Attach(ws)

		octaves, err := analysis.NewOctaveProcessor(ws, bank)
		if err != nil {
			return err
		}
		sinks = append(sinks, octaves)
	} else if cfg.Debug {
		hub.Attach(transport.NewLoggingTransport())
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()

		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, hub)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	var taps []analysis.FrameTap
	if cfg.Recording.Enabled {
		recorder := audio.NewRecorder(cfg.Analysis.SampleRate, cfg.Recording.BitDepth)
		if err := recorder.StartRecording(cfg.Recording.OutputFile); err != nil {
			return err
		}
		defer func() {
			if err := recorder.StopRecording(); err != nil {
				applog.Errorf("Recorder: error stopping recording: %v", err)
				return
			}
			fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
		}()
		taps = append(taps, recorder)
	}

	var filter analysis.FrameFilter
	if cfg.Gate.Enabled {
		filter = audio.NewGate(true, cfg.Gate.Threshold)
	}

	loop, err := analysis.NewLoop(analysis.LoopConfig{
		Engine:       engine,
		Source:       src,
		Sinks:        sinks,
		Taps:         taps,
		Filter:       filter,
		MaxRetries:   cfg.Loop.MaxRetries,
		RetryBackoff: cfg.Loop.RetryBackoff,
		StopOnEOF:    cfg.Loop.StopOnEOF,
	})
	if err != nil {
		return err
	}

	// ==================== HOT PATH ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	applog.Infof("Analysis: %d frames, %d retries", loop.Frames(), loop.Retries())
	if err != nil {
		if kind, ok := audio.KindOf(err); ok {
			return fmt.Errorf("%s: %w", kind, err)
		}
		if errors.Is(err, cqt.ErrFrameSize) {
			return fmt.Errorf("transform: %w", err)
		}
	}
	return err
}

func printKernels(w io.Writer, bank *cqt.KernelBank) error {
	p := bank.Params()
	pad := bitint.NextPowerOfTwo(p.FFTSize)
	fmt.Fprintf(w, "Kernel bank: %d bins, %d per octave, fmin %.2f Hz, fs %d Hz\n",
		bank.Bins(), p.BinsPerOctave, p.FMin, p.SampleRate)
	fmt.Fprintf(w, "Frame %d samples (power of two: %v, inspected at %d), Q %.3f, support %d taps\n\n",
		p.FFTSize, bitint.IsPowerOfTwo(p.FFTSize), pad, bank.Q(), bank.Support())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "bin\tfreq Hz\tlen\tstart\tpeak Hz\tdev Hz\tclamped\t")
	for _, r := range cqt.InspectBank(bank) {
		clamped := ""
		if r.Clamped {
			clamped = "yes"
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%d\t%d\t%.2f\t%+.2f\t%s\t\n",
			r.Bin, r.Frequency, r.Len, r.Start, r.PeakHz, r.Deviation(), clamped)
	}
	return tw.Flush()
}

// Speakd is a background text-to-speech daemon. It loads the synthesis model
// and reference voices once, then serves speak/replay/status requests over a
// Unix domain socket so hotkey-triggered synthesis skips the model load cost.
//
// Usage:
//
//	speakd [flags]
//	speakd --config /path/to/speakd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvoss/speakd/internal/audio"
	"github.com/mvoss/speakd/internal/config"
	"github.com/mvoss/speakd/internal/daemon"
	"github.com/mvoss/speakd/internal/health"
	"github.com/mvoss/speakd/internal/history"
	"github.com/mvoss/speakd/internal/transport"
	"github.com/mvoss/speakd/internal/tts"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/speakd.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("speakd %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("speakd starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the synthesizer backend. Any failure here is fatal: the
	// daemon must not start serving half-initialized.
	var synth tts.Synthesizer
	switch cfg.TTS.Mode {
	case "exec":
		synth, err = tts.NewExecSynthesizer(cfg.TTS.Command, cfg.TTS.SampleRate)
		if err != nil {
			slog.Error("failed to initialize synthesizer", "error", err)
			os.Exit(1)
		}
		slog.Info("using exec synthesizer", "command", cfg.TTS.Command[0])
	case "wyoming":
		synth, err = tts.NewWyomingSynthesizer(cfg.TTS.Endpoint, cfg.Daemon.DefaultVoice)
		if err != nil {
			slog.Error("failed to initialize synthesizer", "error", err)
			os.Exit(1)
		}
		slog.Info("using piper wyoming synthesizer", "endpoint", cfg.TTS.Endpoint)
	case "mock":
		synth = &tts.Mock{SampleRate: cfg.TTS.SampleRate}
		slog.Info("using mock synthesizer")
	default:
		slog.Error("unknown tts mode", "mode", cfg.TTS.Mode)
		os.Exit(1)
	}

	player, err := audio.NewExecPlayer(cfg.Player.Command, cfg.Player.OutputPath, slog.Default())
	if err != nil {
		slog.Error("failed to initialize player", "error", err)
		os.Exit(1)
	}

	hist, err := history.Open(ctx, cfg.History, slog.Default())
	if err != nil {
		slog.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	d := daemon.New(cfg.Daemon, synth, player, hist, slog.Default())
	defer d.Close()

	if err := d.LoadVoices(); err != nil {
		slog.Error("failed to load voices", "error", err)
		os.Exit(1)
	}

	// Optional health endpoint for process supervisors.
	if cfg.Health.Enabled {
		healthServer := health.New(cfg.Health.Port, d.Ready)
		go func() {
			if err := healthServer.ListenAndServe(ctx); err != nil {
				slog.Error("health server failed", "error", err)
			}
		}()
	}

	srv := transport.NewServer(cfg.Socket.Path, slog.Default())
	slog.Info("speakd ready", "socket", cfg.Socket.Path)

	if err := d.Serve(ctx, srv); err != nil {
		slog.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("speakd stopped")
}

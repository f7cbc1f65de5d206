// Speakctl is the command-line and hotkey client for the speakd daemon.
//
// Usage:
//
//	speakctl [flags] speak [text]    synthesize text (clipboard when omitted)
//	speakctl [flags] replay          replay the last generated clip
//	speakctl [flags] status          report daemon status
//	speakctl [flags] voices          list loaded voices
//	speakctl [flags] voice NAME      switch the current voice
//	speakctl [flags] history         show recent syntheses
//	speakctl [flags] quit            stop the daemon
//	speakctl [flags] listen          bind global hotkeys and run until interrupted
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.design/x/hotkey/mainthread"

	"github.com/mvoss/speakd/internal/client"
	"github.com/mvoss/speakd/internal/clipboard"
	"github.com/mvoss/speakd/internal/config"
	"github.com/mvoss/speakd/internal/hotkey"
	"github.com/mvoss/speakd/internal/notify"
	"github.com/mvoss/speakd/internal/protocol"
	"github.com/mvoss/speakd/internal/transport"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file")
	voiceFlag := flag.String("voice", "", "voice override for speak")
	limitFlag := flag.Int("n", 10, "number of history entries to show")
	flag.Parse()

	if *showVersion {
		fmt.Printf("speakctl %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Logging)

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}

	rt := transport.NewClient(cfg.Socket.Path, cfg.Socket.RequestTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cmd == "listen" {
		// The hotkey event loop must own the process main thread on some
		// platforms, so listen mode is dispatched through mainthread.
		mainthread.Init(func() {
			if err := runListen(ctx, cfg, rt); err != nil {
				slog.Error("listen mode failed", "error", err)
				os.Exit(1)
			}
		})
		return
	}

	// One-shot commands report via the terminal, not desktop notifications.
	sess := client.New(rt, cfg.Client, notify.NewLog(slog.Default()), slog.Default())

	resp, err := runCommand(ctx, sess, cmd, *voiceFlag, *limitFlag, flag.Args()[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "speakctl: %v\n", err)
		os.Exit(1)
	}
	printResponse(resp, cmd)
	if !resp.OK() {
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, sess *client.Session, cmd, voice string, limit int, args []string) (*protocol.Response, error) {
	switch cmd {
	case "speak":
		text := strings.Join(args, " ")
		if text == "" {
			var err error
			text, err = clipboard.System{}.Read()
			if err != nil {
				return nil, fmt.Errorf("reading clipboard: %w", err)
			}
		}
		return sess.Speak(ctx, text, voice)
	case "replay":
		return sess.Replay(ctx)
	case "status":
		return sess.Status(ctx)
	case "voices":
		return sess.Voices(ctx)
	case "voice":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: speakctl voice NAME")
		}
		return sess.SwitchVoice(ctx, args[0])
	case "history":
		return sess.History(ctx, limit)
	case "quit":
		return sess.Quit(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func printResponse(resp *protocol.Response, cmd string) {
	switch cmd {
	case "voices":
		for _, v := range resp.Voices {
			fmt.Println(v)
		}
	case "history":
		for _, e := range resp.Entries {
			fmt.Printf("%s  %-12s %6.2fs  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Voice, e.Seconds, e.Text)
		}
	default:
		fmt.Println(resp.Message)
	}
}

// runListen binds the configured hotkeys and blocks until the context is
// cancelled or the quit hotkey fires.
func runListen(ctx context.Context, cfg *config.Config, rt client.RoundTripper) error {
	notifier := notify.NewDesktop(slog.Default())
	sess := client.New(rt, cfg.Client, notifier, slog.Default())

	// Refuse to start without a reachable daemon: hotkeys that silently do
	// nothing are worse than an early exit.
	if _, err := sess.Status(ctx); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", cfg.Socket.Path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go sess.RunHealthMonitor(ctx)

	clip := clipboard.System{}
	bindings := []hotkey.Binding{
		{Combo: cfg.Hotkeys.Speak, Action: func() {
			text, err := clip.Read()
			if err != nil {
				slog.Error("clipboard read failed", "error", err)
				return
			}
			if strings.TrimSpace(text) == "" {
				slog.Info("clipboard empty, nothing to speak")
				return
			}
			resp, err := sess.Speak(ctx, text, "")
			if err != nil {
				// The session already notified about the failed episode.
				slog.Error("speak failed", "error", err)
				return
			}
			if !resp.OK() {
				slog.Error("speak rejected", "code", resp.Code, "message", resp.Message)
				notifier.Notify("speakd", resp.Message)
				return
			}
			slog.Info("speak completed", "time", resp.Seconds)
		}},
		{Combo: cfg.Hotkeys.Replay, Action: func() {
			resp, err := sess.Replay(ctx)
			if err != nil {
				slog.Error("replay failed", "error", err)
				return
			}
			if !resp.OK() {
				if resp.Code == protocol.CodeReplayEmpty {
					slog.Info("nothing to replay yet")
					notifier.Notify("speakd", "nothing to replay yet")
				} else {
					slog.Error("replay rejected", "code", resp.Code, "message", resp.Message)
					notifier.Notify("speakd", resp.Message)
				}
				return
			}
			slog.Info("replaying last clip")
		}},
		{Combo: cfg.Hotkeys.Quit, Action: func() {
			if _, err := sess.Quit(ctx); err != nil {
				slog.Error("quit failed", "error", err)
			}
			cancel()
		}},
	}

	slog.Info("hotkeys active",
		"speak", cfg.Hotkeys.Speak,
		"replay", cfg.Hotkeys.Replay,
		"quit", cfg.Hotkeys.Quit)

	return hotkey.NewListener(bindings, slog.Default()).Run(ctx)
}

// Package daemon implements the speakd core: it owns the loaded synthesizer,
// the reference voices, the last-result cache, and the single-flight
// generation lock, and dispatches socket requests against them.
//
// State machine: Starting → Ready → (Busy → Ready)* → ShuttingDown. Any
// failure before Ready is fatal; after Ready, synthesis failures become error
// responses and the daemon keeps serving.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvoss/speakd/internal/audio"
	"github.com/mvoss/speakd/internal/config"
	"github.com/mvoss/speakd/internal/history"
	"github.com/mvoss/speakd/internal/protocol"
	"github.com/mvoss/speakd/internal/tts"
)

// Voice is one pre-encoded reference speaker.
type Voice struct {
	Name    string
	RefPath string
	RefText string
}

// Daemon holds all daemon-side state. Create with New, then LoadVoices, then Serve.
type Daemon struct {
	cfg    config.DaemonConfig
	synth  tts.Synthesizer
	player audio.Player
	hist   *history.Store
	log    *slog.Logger

	// voices is immutable after LoadVoices.
	voices map[string]Voice

	// genMu serializes synthesizer calls and the lastClip update. It is
	// held only for the duration of one generation, never across a
	// network wait.
	genMu sync.Mutex

	// stateMu guards currentVoice and lastClip. lastClip is swapped as a
	// whole pointer, so a concurrent replay sees either the previous
	// complete clip or the new one, never a torn write.
	stateMu      sync.Mutex
	currentVoice string
	lastClip     *audio.Clip

	ready   atomic.Bool
	started time.Time

	playWG sync.WaitGroup

	quitOnce sync.Once
	quitCh   chan struct{}
}

// New creates a daemon. hist may be a disabled store.
func New(cfg config.DaemonConfig, synth tts.Synthesizer, player audio.Player, hist *history.Store, log *slog.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		synth:   synth,
		player:  player,
		hist:    hist,
		log:     log.With(slog.String("component", "daemon")),
		voices:  make(map[string]Voice),
		started: time.Now(),
		quitCh:  make(chan struct{}),
	}
}

// LoadVoices scans the voices directory for pre-encoded references: each
// <name>.pt with a <name>.txt transcript sibling becomes a voice. Zero loaded
// voices, or a missing default voice, is a startup failure.
func (d *Daemon) LoadVoices() error {
	matches, err := filepath.Glob(filepath.Join(d.cfg.VoicesDir, "*.pt"))
	if err != nil {
		return fmt.Errorf("scan voices dir: %w", err)
	}

	for _, refPath := range matches {
		name := strings.TrimSuffix(filepath.Base(refPath), ".pt")
		txtPath := strings.TrimSuffix(refPath, ".pt") + ".txt"
		refText, err := os.ReadFile(txtPath)
		if err != nil {
			d.log.Warn("skipping voice without transcript",
				slog.String("voice", name),
				slog.String("error", err.Error()))
			continue
		}
		d.voices[name] = Voice{
			Name:    name,
			RefPath: refPath,
			RefText: strings.TrimSpace(string(refText)),
		}
		d.log.Info("loaded voice", slog.String("voice", name))
	}

	if len(d.voices) == 0 {
		return fmt.Errorf("no voices found in %s", d.cfg.VoicesDir)
	}
	if _, ok := d.voices[d.cfg.DefaultVoice]; !ok {
		return fmt.Errorf("default voice %q not among loaded voices %v",
			d.cfg.DefaultVoice, d.voiceNames())
	}
	d.currentVoice = d.cfg.DefaultVoice
	d.log.Info("voices ready",
		slog.Int("count", len(d.voices)),
		slog.String("default", d.cfg.DefaultVoice))
	return nil
}

// Ready reports whether the daemon is accepting requests.
func (d *Daemon) Ready() bool { return d.ready.Load() }

// QuitRequested is closed when a quit request has been served.
func (d *Daemon) QuitRequested() <-chan struct{} { return d.quitCh }

// Handle dispatches one request. It is the transport.Handler for the daemon
// and may be called concurrently from multiple connections.
func (d *Daemon) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	d.log.Debug("request", slog.String("action", req.Action), slog.String("id", req.ID))

	switch req.Action {
	case protocol.ActionSpeak:
		return d.handleSpeak(ctx, req)
	case protocol.ActionReplay:
		return d.handleReplay(ctx)
	case protocol.ActionStatus:
		return d.handleStatus()
	case protocol.ActionVoice:
		return d.handleSwitchVoice(req.Voice)
	case protocol.ActionVoices:
		return d.handleVoices()
	case protocol.ActionHistory:
		return d.handleHistory(ctx, req.Limit)
	case protocol.ActionQuit:
		return d.handleQuit()
	case "":
		return protocol.NewError(protocol.CodeBadRequest, "missing action")
	default:
		return protocol.NewError(protocol.CodeUnknownAction, "unknown action: "+req.Action)
	}
}

func (d *Daemon) handleSpeak(ctx context.Context, req *protocol.Request) *protocol.Response {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return protocol.NewError(protocol.CodeBadRequest, "empty text")
	}
	if runes := []rune(text); len(runes) > d.cfg.MaxTextLen {
		text = string(runes[:d.cfg.MaxTextLen])
		d.log.Warn("text truncated", slog.Int("max", d.cfg.MaxTextLen))
	}

	voice, resp := d.resolveVoice(req.Voice)
	if resp != nil {
		return resp
	}

	// Single-flight: a concurrent speak waits here until the previous
	// generation finishes. Bounded by synthesizer latency, so the
	// connection blocks rather than being rejected.
	d.genMu.Lock()
	defer d.genMu.Unlock()

	d.log.Info("generating",
		slog.String("voice", voice.Name),
		slog.Int("chars", len(text)))
	start := time.Now()

	result, err := d.synth.Synthesize(ctx, text, tts.Opts{
		Voice:   voice.Name,
		RefPath: voice.RefPath,
		RefText: voice.RefText,
	})
	if err != nil {
		d.log.Error("generation failed", slog.String("error", err.Error()))
		return protocol.NewError(protocol.CodeSynthesisFailed, err.Error())
	}

	elapsed := time.Since(start)
	clip := &audio.Clip{PCM: result.PCM, SampleRate: result.SampleRate}

	d.stateMu.Lock()
	d.lastClip = clip
	d.stateMu.Unlock()

	if d.hist != nil {
		if err := d.hist.Append(ctx, history.Entry{
			Voice:   voice.Name,
			Text:    text,
			Seconds: elapsed.Seconds(),
		}); err != nil {
			d.log.Warn("history append failed", slog.String("error", err.Error()))
		}
	}

	d.playAsync(clip)

	seconds := math.Round(elapsed.Seconds()*100) / 100
	d.log.Info("generated", slog.Float64("seconds", seconds))
	return &protocol.Response{
		Status:  protocol.StatusSuccess,
		Seconds: seconds,
		Message: fmt.Sprintf("generated in %.2fs", seconds),
	}
}

func (d *Daemon) handleReplay(_ context.Context) *protocol.Response {
	d.stateMu.Lock()
	clip := d.lastClip
	d.stateMu.Unlock()

	if clip == nil {
		return protocol.NewError(protocol.CodeReplayEmpty, "nothing to replay")
	}

	d.log.Info("replaying last clip")
	d.playAsync(clip)
	return protocol.NewSuccess("replaying last clip")
}

// handleStatus answers immediately; it must never touch genMu so health
// probes stay responsive during generation.
func (d *Daemon) handleStatus() *protocol.Response {
	d.stateMu.Lock()
	current := d.currentVoice
	d.stateMu.Unlock()

	uptime := time.Since(d.started).Round(time.Second)
	return protocol.NewSuccess(fmt.Sprintf("ready: %d voices, current voice %q, up %s",
		len(d.voices), current, uptime))
}

func (d *Daemon) handleSwitchVoice(name string) *protocol.Response {
	if name == "" {
		return protocol.NewError(protocol.CodeBadRequest, "missing voice name")
	}
	if _, ok := d.voices[name]; !ok {
		return protocol.NewError(protocol.CodeVoiceNotFound,
			fmt.Sprintf("voice %q not found (have %s)", name, strings.Join(d.voiceNames(), ", ")))
	}

	d.stateMu.Lock()
	d.currentVoice = name
	d.stateMu.Unlock()

	d.log.Info("switched voice", slog.String("voice", name))
	return protocol.NewSuccess("switched to " + name)
}

func (d *Daemon) handleVoices() *protocol.Response {
	d.stateMu.Lock()
	current := d.currentVoice
	d.stateMu.Unlock()

	resp := protocol.NewSuccess("current voice: " + current)
	resp.Voices = d.voiceNames()
	return resp
}

func (d *Daemon) handleHistory(ctx context.Context, limit int) *protocol.Response {
	if d.hist == nil || !d.hist.Enabled() {
		return protocol.NewError(protocol.CodeHistoryDisabled, "history is disabled")
	}
	entries, err := d.hist.Recent(ctx, limit)
	if err != nil {
		return protocol.NewError(protocol.CodeBadRequest, "history query failed: "+err.Error())
	}

	resp := protocol.NewSuccess(fmt.Sprintf("%d entries", len(entries)))
	for _, e := range entries {
		resp.Entries = append(resp.Entries, protocol.HistoryEntry{
			Voice:     e.Voice,
			Text:      e.Text,
			Seconds:   e.Seconds,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}

func (d *Daemon) handleQuit() *protocol.Response {
	d.log.Info("quit requested")
	d.quitOnce.Do(func() { close(d.quitCh) })
	return protocol.NewSuccess("shutting down")
}

func (d *Daemon) resolveVoice(requested string) (Voice, *protocol.Response) {
	d.stateMu.Lock()
	name := d.currentVoice
	d.stateMu.Unlock()
	if requested != "" {
		name = requested
	}

	voice, ok := d.voices[name]
	if !ok {
		return Voice{}, protocol.NewError(protocol.CodeVoiceNotFound,
			fmt.Sprintf("voice %q not found (have %s)", name, strings.Join(d.voiceNames(), ", ")))
	}
	return voice, nil
}

// playAsync plays the clip without blocking the request; the player itself
// serializes overlapping playbacks.
func (d *Daemon) playAsync(clip *audio.Clip) {
	d.playWG.Add(1)
	go func() {
		defer d.playWG.Done()
		if err := d.player.Play(context.Background(), clip); err != nil {
			d.log.Error("playback failed", slog.String("error", err.Error()))
		}
	}()
}

func (d *Daemon) voiceNames() []string {
	names := make([]string, 0, len(d.voices))
	for name := range d.voices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

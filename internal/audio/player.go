package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
)

// ExecPlayer plays clips by writing them to a WAV file and invoking a
// command-line player. Playback is serialized: a new clip waits for the
// previous one to finish, matching how a single interactive user expects
// back-to-back requests to behave.
type ExecPlayer struct {
	command []string
	outPath string
	log     *slog.Logger

	mu sync.Mutex
}

// NewExecPlayer creates a player. command is the player argv (the WAV path is
// appended); when empty, a platform player is detected. outPath is where each
// clip is written before playback.
func NewExecPlayer(command []string, outPath string, log *slog.Logger) (*ExecPlayer, error) {
	if len(command) == 0 {
		detected, err := detectPlayer()
		if err != nil {
			return nil, err
		}
		command = detected
	}
	return &ExecPlayer{
		command: command,
		outPath: outPath,
		log:     log.With(slog.String("component", "player")),
	}, nil
}

func (p *ExecPlayer) Play(ctx context.Context, clip *Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := EncodeWAV(p.outPath, clip); err != nil {
		return err
	}

	args := append(append([]string{}, p.command[1:]...), p.outPath)
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play %s: %w", p.outPath, err)
	}
	return nil
}

func detectPlayer() ([]string, error) {
	var candidates []string
	if runtime.GOOS == "darwin" {
		candidates = []string{"afplay"}
	} else {
		candidates = []string{"paplay", "aplay", "play"}
	}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return []string{name}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (tried %v); set player.command", candidates)
}

// NopPlayer discards clips. Used in tests and when running headless.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, *Clip) error { return nil }

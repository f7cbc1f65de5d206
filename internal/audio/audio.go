// Package audio handles waveform output: encoding generated PCM as WAV and
// playing it through the platform's command-line player.
package audio

import (
	"context"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is one complete generated waveform, mono 16-bit.
type Clip struct {
	PCM        []int
	SampleRate int
}

// Player plays a clip to the local audio output.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// EncodeWAV writes the clip to path as a mono 16-bit WAV file.
func EncodeWAV(path string, clip *Clip) error {
	if clip == nil || len(clip.PCM) == 0 {
		return fmt.Errorf("empty clip")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Data:           clip.PCM,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: clip.SampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// Package tts defines the interface to the speech synthesizer.
//
// The neural model itself lives in a separate host process; speakd only
// cares about the contract: text plus a pre-encoded reference voice in,
// waveform out. Latency is seconds, not milliseconds, which is why the
// daemon keeps a single loaded instance behind a single-flight lock.
package tts

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Opts selects the reference voice conditioning for one synthesis.
type Opts struct {
	// Voice is the voice name, for logging and the model host.
	Voice string

	// RefPath is the pre-encoded reference codes file for the voice.
	RefPath string

	// RefText is the transcript of the reference sample.
	RefText string
}

// Result holds the synthesized waveform.
type Result struct {
	// PCM is mono 16-bit audio, one sample per element.
	PCM []int

	// SampleRate is the waveform sample rate in Hz (e.g. 24000).
	SampleRate int
}

// Synthesizer converts text to audio. Implementations are not assumed
// reentrant; the daemon serializes calls.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Opts) (*Result, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// decodePCM16 converts little-endian 16-bit mono samples to ints.
func decodePCM16(raw []byte) ([]int, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(raw))
	}
	pcm := make([]int, len(raw)/2)
	for i := range pcm {
		pcm[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return pcm, nil
}

package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	clip := &Clip{PCM: []int{0, 100, -100, 32000, -32000, 7}, SampleRate: 24000}

	if err := EncodeWAV(path, clip); err != nil {
		t.Fatalf("encode: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if int(dec.SampleRate) != clip.SampleRate {
		t.Fatalf("expected sample rate %d, got %d", clip.SampleRate, dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Fatalf("expected mono, got %d channels", dec.NumChans)
	}
	if len(buf.Data) != len(clip.PCM) {
		t.Fatalf("expected %d samples, got %d", len(clip.PCM), len(buf.Data))
	}
	for i, want := range clip.PCM {
		if buf.Data[i] != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, buf.Data[i])
		}
	}
}

func TestEncodeWAVRejectsEmptyClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := EncodeWAV(path, &Clip{SampleRate: 24000}); err == nil {
		t.Fatal("expected error for empty clip")
	}
	if err := EncodeWAV(path, nil); err == nil {
		t.Fatal("expected error for nil clip")
	}
}

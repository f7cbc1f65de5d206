package tts

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

// ExecSynthesizer runs a model host process per synthesis, speaking JSON over
// stdin/stdout. One request in, one response line out:
//
//	in:  {"text":..., "voice":..., "ref_path":..., "ref_text":..., "sample_rate":...}
//	out: {"pcm_base64": "<16-bit LE samples>", "sample_rate": 24000}
//	     or {"error": "..."}
type ExecSynthesizer struct {
	cmd        []string
	sampleRate int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	RefPath    string `json:"ref_path"`
	RefText    string `json:"ref_text"`
	SampleRate int    `json:"sample_rate"`
}

type execResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error"`
}

// NewExecSynthesizer creates a synthesizer backed by the given argv.
func NewExecSynthesizer(command []string, sampleRate int) (*ExecSynthesizer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &ExecSynthesizer{cmd: command, sampleRate: sampleRate}, nil
}

func (e *ExecSynthesizer) Synthesize(ctx context.Context, text string, opts Opts) (*Result, error) {
	// The model host is not reentrant.
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      opts.Voice,
		RefPath:    opts.RefPath,
		RefText:    opts.RefText,
		SampleRate: e.sampleRate,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start model host: %w", err)
	}

	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("write to model host: %w", err)
	}
	stdin.Close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	if !scanner.Scan() {
		waitErr := cmd.Wait()
		if scanErr := scanner.Err(); scanErr != nil {
			return nil, fmt.Errorf("read from model host: %w", scanErr)
		}
		if waitErr != nil {
			return nil, fmt.Errorf("model host exited: %w", waitErr)
		}
		return nil, fmt.Errorf("model host produced no output")
	}
	line := scanner.Bytes()

	var resp execResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("decode model host response: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("model host exited: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("model host: %s", resp.Error)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	pcm, err := decodePCM16(raw)
	if err != nil {
		return nil, err
	}
	rate := resp.SampleRate
	if rate == 0 {
		rate = e.sampleRate
	}
	return &Result{PCM: pcm, SampleRate: rate}, nil
}

func (e *ExecSynthesizer) Close() error { return nil }

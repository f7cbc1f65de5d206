package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is a synthesizer for tests and dry runs. It counts invocations and
// tracks how many were active at once, so tests can assert the daemon's
// single-flight discipline.
type Mock struct {
	// Delay simulates generation latency.
	Delay time.Duration

	// Err, when set, is returned by every Synthesize call.
	Err error

	// SampleRate of the produced clip. Defaults to 24000.
	SampleRate int

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
}

func (m *Mock) Synthesize(ctx context.Context, text string, opts Opts) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	rate := m.SampleRate
	if rate == 0 {
		rate = 24000
	}
	// A short, deterministic waveform keyed to the input length.
	pcm := make([]int, 8)
	for i := range pcm {
		pcm[i] = len(text) + i
	}
	return &Result{PCM: pcm, SampleRate: rate}, nil
}

func (m *Mock) Close() error { return nil }

// Calls returns the total number of Synthesize invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight returns the peak number of concurrent Synthesize calls.
func (m *Mock) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

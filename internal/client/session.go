// Package client implements the daemon-facing session used by speakctl: one
// round trip per request with retry and exponential backoff, a shared
// consecutive-failure counter, and a background health monitor.
//
// Retries are idempotent only by convention. If the daemon finishes a speak
// request after the client has given up waiting, a retried request generates
// again: the guarantee is at-most-effectively-once, not exactly-once.
package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/mvoss/speakd/internal/config"
	"github.com/mvoss/speakd/internal/errorsx"
	"github.com/mvoss/speakd/internal/notify"
	"github.com/mvoss/speakd/internal/protocol"
)

// RoundTripper performs one request/response exchange with the daemon.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Session wraps a RoundTripper with resilience. Safe for concurrent use; the
// health monitor and user-triggered requests share the failure counter but
// use independent connections.
type Session struct {
	rt       RoundTripper
	cfg      config.ClientConfig
	notifier notify.Notifier
	log      *slog.Logger

	mu                  sync.Mutex
	consecutiveFailures int
	downNotified        bool
}

// New creates a session.
func New(rt RoundTripper, cfg config.ClientConfig, notifier notify.Notifier, log *slog.Logger) *Session {
	return &Session{
		rt:       rt,
		cfg:      cfg,
		notifier: notifier,
		log:      log.With(slog.String("component", "session")),
	}
}

// Do performs one request with retries. Connectivity failures are retried up
// to cfg.MaxAttempts total attempts with doubling backoff; exhaustion returns
// an error with reason errorsx.ReasonUnavailable. An error *response* from
// the daemon is not an error here — the caller inspects Response.Code.
func (s *Session) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0

	op := func() (*protocol.Response, error) {
		return s.rt.RoundTrip(ctx, req)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)))
	if err != nil {
		s.recordFailure()
		s.log.Warn("request failed after retries",
			slog.String("action", req.Action),
			slog.Int("attempts", s.cfg.MaxAttempts),
			slog.String("error", err.Error()))
		// One notification per exhausted request, on top of whatever the
		// health monitor reports about the longer outage.
		s.notifier.Notify("speakd", req.Action+" failed: daemon unreachable")
		// The per-attempt reason (connect, timeout) is still in the chain;
		// the caller sees the aggregate condition.
		return nil, errorsx.Rewrap(err, errorsx.ReasonUnavailable)
	}

	s.recordSuccess()
	return resp, nil
}

// Speak asks the daemon to synthesize and play text.
func (s *Session) Speak(ctx context.Context, text, voice string) (*protocol.Response, error) {
	req := s.newRequest(protocol.ActionSpeak)
	req.Text = text
	req.Voice = voice
	return s.Do(ctx, req)
}

// Replay asks the daemon to play the last generated clip again.
func (s *Session) Replay(ctx context.Context) (*protocol.Response, error) {
	return s.Do(ctx, s.newRequest(protocol.ActionReplay))
}

// Status probes daemon liveness. It never blocks on generation.
func (s *Session) Status(ctx context.Context) (*protocol.Response, error) {
	return s.Do(ctx, s.newRequest(protocol.ActionStatus))
}

// Quit asks the daemon to shut down.
func (s *Session) Quit(ctx context.Context) (*protocol.Response, error) {
	return s.Do(ctx, s.newRequest(protocol.ActionQuit))
}

// SwitchVoice changes the daemon's current voice.
func (s *Session) SwitchVoice(ctx context.Context, voice string) (*protocol.Response, error) {
	req := s.newRequest(protocol.ActionVoice)
	req.Voice = voice
	return s.Do(ctx, req)
}

// Voices lists the daemon's loaded voices.
func (s *Session) Voices(ctx context.Context) (*protocol.Response, error) {
	return s.Do(ctx, s.newRequest(protocol.ActionVoices))
}

// History fetches recent synthesis records.
func (s *Session) History(ctx context.Context, limit int) (*protocol.Response, error) {
	req := s.newRequest(protocol.ActionHistory)
	req.Limit = limit
	return s.Do(ctx, req)
}

// ConsecutiveFailures returns the current failure streak.
func (s *Session) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}

func (s *Session) newRequest(action string) *protocol.Request {
	return &protocol.Request{ID: uuid.NewString(), Action: action}
}

func (s *Session) recordSuccess() {
	s.mu.Lock()
	s.consecutiveFailures = 0
	s.downNotified = false
	s.mu.Unlock()
}

// recordFailure bumps the failure streak and fires the "service down"
// notification exactly once per episode: on the transition from below the
// threshold to at it, never on later failures in the same streak.
func (s *Session) recordFailure() {
	s.mu.Lock()
	s.consecutiveFailures++
	notifyDown := s.consecutiveFailures >= s.cfg.HealthThreshold && !s.downNotified
	if notifyDown {
		s.downNotified = true
	}
	s.mu.Unlock()

	if notifyDown {
		s.notifier.Notify("speakd", "service appears down, restart required")
	}
}

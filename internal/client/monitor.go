package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/mvoss/speakd/internal/protocol"
)

// RunHealthMonitor probes the daemon with a status request every
// cfg.HealthInterval until the context is cancelled. Each probe is a single
// attempt on its own connection — the retry path is for user requests; a
// missed probe just feeds the failure counter and the next tick tries again.
func (s *Session) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Session) probe(ctx context.Context) {
	req := s.newRequest(protocol.ActionStatus)
	resp, err := s.rt.RoundTrip(ctx, req)
	if err != nil {
		s.log.Debug("health probe failed", slog.String("error", err.Error()))
		s.recordFailure()
		return
	}
	if !resp.OK() {
		s.log.Debug("health probe returned error", slog.String("message", resp.Message))
		s.recordFailure()
		return
	}
	s.recordSuccess()
}

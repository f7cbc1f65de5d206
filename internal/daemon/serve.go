package daemon

import (
	"context"
	"log/slog"

	"github.com/mvoss/speakd/internal/transport"
)

// Serve runs the daemon against the given socket server until the context is
// cancelled or a quit request has been answered, then drains: the listener
// stops accepting, in-flight responses flush, and pending playback gets a
// bounded window to finish.
func (d *Daemon) Serve(ctx context.Context, srv *transport.Server) error {
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(listenCtx, d.Handle) }()

	d.ready.Store(true)
	d.log.Info("daemon ready")

	select {
	case err := <-errCh:
		d.ready.Store(false)
		return err
	case <-ctx.Done():
		d.log.Info("shutdown signal received")
	case <-d.quitCh:
	}

	d.ready.Store(false)

	drainCtx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	err := srv.Shutdown(drainCtx)
	<-errCh

	// Let in-flight playback finish within the remaining drain budget.
	playDone := make(chan struct{})
	go func() {
		d.playWG.Wait()
		close(playDone)
	}()
	select {
	case <-playDone:
	case <-drainCtx.Done():
		d.log.Warn("drain timeout, abandoning playback")
	}

	d.log.Info("daemon stopped")
	return err
}

// Close releases the synthesizer and history store.
func (d *Daemon) Close() {
	if err := d.synth.Close(); err != nil {
		d.log.Warn("synthesizer close failed", slog.String("error", err.Error()))
	}
	if d.hist != nil {
		if err := d.hist.Close(); err != nil {
			d.log.Warn("history close failed", slog.String("error", err.Error()))
		}
	}
}

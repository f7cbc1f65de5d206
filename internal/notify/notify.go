// Package notify surfaces user-visible notifications from the client.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier delivers a short user-visible message. Implementations must not
// block the caller for long; delivery is best effort.
type Notifier interface {
	Notify(title, message string)
}

// Desktop shows native desktop notifications.
type Desktop struct {
	log *slog.Logger
}

// NewDesktop creates a desktop notifier.
func NewDesktop(log *slog.Logger) *Desktop {
	return &Desktop{log: log.With(slog.String("component", "notify"))}
}

func (d *Desktop) Notify(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		d.log.Warn("notification failed",
			slog.String("title", title),
			slog.String("error", err.Error()))
	}
}

// Log writes notifications to the logger. Used by one-shot CLI commands where
// stdout already carries the result.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(title, message string) {
	l.log.Info("notification", slog.String("title", title), slog.String("message", message))
}

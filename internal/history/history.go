// Package history keeps an optional SQLite log of completed syntheses,
// queryable through the daemon's history action.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mvoss/speakd/internal/config"
	_ "modernc.org/sqlite"
)

// textPreviewLen caps how much of the spoken text is retained per entry.
const textPreviewLen = 120

// Entry is one recorded synthesis.
type Entry struct {
	ID        int64
	Voice     string
	Text      string
	Seconds   float64
	CreatedAt time.Time
}

// Store wraps the SQLite-backed synthesis log. A disabled store is valid and
// turns every method into a no-op.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS syntheses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    voice TEXT NOT NULL,
    text TEXT NOT NULL,
    seconds REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_syntheses_created ON syntheses(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Enabled reports whether entries are being persisted.
func (s *Store) Enabled() bool { return s.db != nil }

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one completed synthesis. The stored text is truncated to a
// short preview.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s.db == nil {
		return nil
	}
	text := e.Text
	if runes := []rune(text); len(runes) > textPreviewLen {
		text = string(runes[:textPreviewLen])
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO syntheses(voice, text, seconds, created_at) VALUES(?, ?, ?, ?)`,
		e.Voice, text, e.Seconds, e.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// Recent retrieves up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, voice, text, seconds, created_at
		 FROM syntheses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Voice, &e.Text, &e.Seconds, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune drops everything beyond the newest MaxEntries rows.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil || s.cfg.MaxEntries <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM syntheses WHERE id IN (
		SELECT id FROM syntheses ORDER BY id DESC LIMIT -1 OFFSET ?
	)`, s.cfg.MaxEntries)
	return err
}

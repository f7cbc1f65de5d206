package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mvoss/speakd/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	cfg := config.HistoryConfig{
		Enabled:    true,
		Path:       filepath.Join(t.TempDir(), "history.db"),
		MaxEntries: maxEntries,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDisabledStoreIsNoop(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{Enabled: false}, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Enabled() {
		t.Fatal("disabled store reports enabled")
	}
	if err := s.Append(context.Background(), Entry{Voice: "dave", Text: "x"}); err != nil {
		t.Fatalf("append on disabled store: %v", err)
	}
	entries, err := s.Recent(context.Background(), 10)
	if err != nil || entries != nil {
		t.Fatalf("expected nil entries, got %v (err %v)", entries, err)
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := openStore(t, 100)
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third"} {
		err := s.Append(ctx, Entry{Voice: "dave", Text: text, Seconds: float64(i) + 0.5})
		if err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "third" || entries[1].Text != "second" {
		t.Fatalf("expected newest first, got %q then %q", entries[0].Text, entries[1].Text)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("created_at not round-tripped")
	}
}

func TestLongTextTruncated(t *testing.T) {
	s := openStore(t, 100)
	long := strings.Repeat("a", 500)
	if err := s.Append(context.Background(), Entry{Voice: "dave", Text: long}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := s.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries[0].Text) != textPreviewLen {
		t.Fatalf("expected %d-char preview, got %d", textPreviewLen, len(entries[0].Text))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	s := openStore(t, 2)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return base }

	for _, text := range []string{"one", "two", "three", "four"} {
		base = base.Add(time.Minute)
		if err := s.Append(ctx, Entry{Voice: "dave", Text: text}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after prune, got %d", len(entries))
	}
	if entries[0].Text != "four" || entries[1].Text != "three" {
		t.Fatalf("prune kept wrong rows: %q, %q", entries[0].Text, entries[1].Text)
	}
}

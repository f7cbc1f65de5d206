package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvoss/speakd/internal/protocol"
	"github.com/mvoss/speakd/internal/transport"
	"github.com/mvoss/speakd/internal/tts"
)

func TestServeQuitRoundTrip(t *testing.T) {
	d, _ := newDaemon(t, &tts.Mock{})
	path := filepath.Join(t.TempDir(), "speakd.sock")
	srv := transport.NewServer(path, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- d.Serve(ctx, srv) }()

	client := transport.NewClient(path, 2*time.Second)
	waitReachable(t, client)

	resp, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionQuit})
	if err != nil {
		t.Fatalf("quit round trip: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got %+v", resp)
	}

	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop after quit")
	}

	if _, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus}); err == nil {
		t.Fatal("daemon still accepting connections after quit")
	}
}

func TestServeSpeakOverSocket(t *testing.T) {
	mock := &tts.Mock{}
	d, player := newDaemon(t, mock)
	path := filepath.Join(t.TempDir(), "speakd.sock")
	srv := transport.NewServer(path, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- d.Serve(ctx, srv) }()

	client := transport.NewClient(path, 5*time.Second)
	waitReachable(t, client)

	resp, err := client.RoundTrip(context.Background(), &protocol.Request{
		Action: protocol.ActionSpeak,
		Text:   "over the wire",
	})
	if err != nil {
		t.Fatalf("speak round trip: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if mock.Calls() != 1 {
		t.Fatalf("expected 1 synthesizer call, got %d", mock.Calls())
	}

	cancel()
	if err := <-serveDone; err != nil {
		t.Fatalf("serve: %v", err)
	}
	if player.count() != 1 {
		t.Fatalf("expected playback drained before exit, got %d", player.count())
	}
}

func waitReachable(t *testing.T, client *transport.Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus})
		if err == nil && resp.OK() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon never became reachable: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvoss/speakd/internal/errorsx"
	"github.com/mvoss/speakd/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func statusHandler(_ context.Context, req *protocol.Request) *protocol.Response {
	if req.Action != protocol.ActionStatus {
		return protocol.NewError(protocol.CodeUnknownAction, "unknown action: "+req.Action)
	}
	return protocol.NewSuccess("ready")
}

// startServer runs a server in the background and waits for the socket to appear.
func startServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speakd.sock")
	srv := NewServer(path, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(ctx, handler) }()
	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil {
			t.Errorf("listen returned error: %v", err)
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return srv, path
		}
		if time.Now().After(deadline) {
			t.Fatal("server socket never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoundTrip(t *testing.T) {
	_, path := startServer(t, statusHandler)

	client := NewClient(path, 2*time.Second)
	resp, err := client.RoundTrip(context.Background(), &protocol.Request{ID: "req-1", Action: protocol.ActionStatus})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.ID != "req-1" {
		t.Fatalf("expected request ID echoed, got %q", resp.ID)
	}
}

func TestMalformedRequestGetsErrorResponse(t *testing.T) {
	_, path := startServer(t, statusHandler)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.OK() || resp.Code != protocol.CodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", resp)
	}

	// The daemon must survive: a well-formed request on a new connection works.
	client := NewClient(path, 2*time.Second)
	resp2, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus})
	if err != nil {
		t.Fatalf("round trip after malformed request: %v", err)
	}
	if !resp2.OK() {
		t.Fatalf("expected success, got %+v", resp2)
	}
}

func TestRequestWithoutTrailingNewline(t *testing.T) {
	// The original Python client half-closes the write side instead of
	// sending a newline.
	_, path := startServer(t, statusHandler)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"action":"status"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.(*net.UnixConn).CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	line, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestStaleSocketRemovedOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakd.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("plant stale socket: %v", err)
	}

	srv := NewServer(path, newLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(ctx, statusHandler) }()

	client := NewClient(path, 2*time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never became reachable over stale socket path")
		}
		time.Sleep(5 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("listen: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("socket file not removed on shutdown")
	}
}

func TestAbsentEndpointIsConnectError(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "nope.sock"), time.Second)
	_, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errorsx.HasReason(err, errorsx.ReasonConnect) {
		t.Fatalf("expected connect reason, got %s", errorsx.Reason(err))
	}
}

func TestShutdownStopsAccepting(t *testing.T) {
	srv, path := startServer(t, statusHandler)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	client := NewClient(path, time.Second)
	if _, err := client.RoundTrip(context.Background(), &protocol.Request{Action: protocol.ActionStatus}); err == nil {
		t.Fatal("expected connection failure after shutdown")
	}
}

// Package transport implements the local IPC channel between speakd and its
// clients: a Unix domain socket carrying one newline-delimited JSON request
// and one response per connection.
//
// The daemon owns the listening side. Clients open a fresh connection per
// request, which keeps user-triggered requests and background health probes
// from blocking each other.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/mvoss/speakd/internal/protocol"
)

// Handler processes one decoded request and returns the response to write.
// The dispatcher provides this handler to the server.
type Handler func(ctx context.Context, req *protocol.Request) *protocol.Response

// Server accepts connections on a Unix socket and dispatches requests.
type Server struct {
	path string
	log  *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool

	wg sync.WaitGroup
}

// NewServer creates a server bound to the given socket path when Listen is called.
func NewServer(path string, log *slog.Logger) *Server {
	return &Server{path: path, log: log.With(slog.String("component", "transport"))}
}

// Listen binds the socket and serves connections until the context is
// cancelled or Shutdown is called. A stale socket file from a previous run is
// removed before binding.
func (s *Server) Listen(ctx context.Context, handler Handler) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		os.Remove(s.path)
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.closeListener()
	}()

	s.log.Info("listening", slog.String("path", s.path))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn, handler)
	}
}

// Shutdown stops accepting connections, waits for in-flight requests to flush
// their responses (bounded by ctx), and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer s.wg.Done()
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		s.log.Warn("read request failed", slog.String("error", err.Error()))
		return
	}
	// The Python client half-closes without a trailing newline; a partial
	// line at EOF is a complete request.
	if len(line) == 0 {
		return
	}

	var resp *protocol.Response
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("malformed request", slog.String("error", err.Error()))
		resp = protocol.NewError(protocol.CodeBadRequest, "invalid JSON")
	} else {
		resp = handler(ctx, &req)
		if resp.ID == "" {
			resp.ID = req.ID
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response failed", slog.String("error", err.Error()))
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.log.Warn("write response failed", slog.String("error", err.Error()))
	}
}

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/mvoss/speakd/internal/errorsx"
	"github.com/mvoss/speakd/internal/protocol"
)

// Client performs one request/response round trip per connection.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient creates a client for the daemon socket. timeout bounds a full
// round trip including generation time; zero means no deadline.
func NewClient(path string, timeout time.Duration) *Client {
	return &Client{path: path, timeout: timeout}
}

// RoundTrip dials the daemon, sends one request and reads one response.
// Errors are reason-coded so callers can distinguish an absent endpoint
// (errorsx.ReasonConnect) from a broken exchange (errorsx.ReasonSend,
// errorsx.ReasonTimeout).
func (c *Client) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, errorsx.Wrap(err, classifyDial(err))
	}
	defer conn.Close()

	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProtocol)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, errorsx.Wrap(err, classifyIO(err))
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errorsx.Wrap(err, classifyIO(err))
	}
	if len(line) == 0 {
		return nil, errorsx.Wrap(errors.New("connection closed before response"), errorsx.ReasonSend)
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProtocol)
	}
	return &resp, nil
}

func classifyDial(err error) errorsx.ReasonCode {
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
		return errorsx.ReasonConnect
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errorsx.ReasonTimeout
	}
	return errorsx.ReasonConnect
}

func classifyIO(err error) errorsx.ReasonCode {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errorsx.ReasonTimeout
	}
	return errorsx.ReasonSend
}

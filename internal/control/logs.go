package control

import (
	"context"
	"io"
	"net"

	"github.com/gorilla/websocket"

	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/logstream"
	"github.com/firefly-engineering/rtctl/internal/observability"
)

// StreamLogs opens a live tail of the runtime's log records. The stream is
// tracked by the client until it ends or the client is closed.
func (c *Client) StreamLogs(ctx context.Context, pid int, filter LogFilter) (*logstream.Stream, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errors.ClientClosed()
	}

	address := c.address(pid)
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.dial(ctx, address)
		},
		HandshakeTimeout: handshakeTimeout,
	}

	target := wsBase + RouteLogs
	if !filter.IsZero() {
		target += "?" + filter.Query().Encode()
	}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if len(body) > 0 {
				streamErr := errors.FailedToStreamRuntimeLogs(err)
				streamErr.Detail = string(body)
				return nil, streamErr
			}
		}
		return nil, errors.FailedToStreamRuntimeLogs(err)
	}

	sess := &session{}
	stream := logstream.New(conn,
		logstream.WithHighWaterMark(c.highWaterMark),
		logstream.WithOnEnd(func() { c.endSession(sess) }),
	)
	observability.LogSessionOpened()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = stream.Close()
		return nil, errors.ClientClosed()
	}
	if !sess.ended {
		c.sessions[sess] = stream
	}
	c.mu.Unlock()

	logging.Debug("log stream opened", "pid", pid, "filter", filter)
	return stream, nil
}

// endSession drops a finished stream from the session set.
func (c *Client) endSession(sess *session) {
	c.mu.Lock()
	sess.ended = true
	delete(c.sessions, sess)
	c.mu.Unlock()
	observability.LogSessionClosed()
}

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/logstream"
	"github.com/firefly-engineering/rtctl/internal/observability"
	"github.com/firefly-engineering/rtctl/internal/system"
)

// Control API routes.
const (
	RouteMetadata = "/api/metadata"
	RouteServices = "/api/services"
	RouteConfig   = "/api/config"
	RouteEnv      = "/api/env"
	RouteReload   = "/api/reload"
	RouteStop     = "/api/stop"
	RouteLogs     = "/api/logs"
)

// The host is ignored by the dialer; it only fills the request line.
const (
	httpBase = "http://localhost"
	wsBase   = "ws://localhost"
)

const (
	handshakeTimeout      = 10 * time.Second
	readinessPollInterval = 100 * time.Millisecond
)

// DialFunc connects to a control endpoint address.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// Option configures a Client.
type Option func(*Client)

// WithAddressFunc overrides how a pid maps to a control endpoint address.
func WithAddressFunc(fn func(pid int) string) Option {
	return func(c *Client) {
		c.address = fn
	}
}

// WithDialer overrides how control endpoints are dialed.
func WithDialer(fn DialFunc) Option {
	return func(c *Client) {
		c.dial = fn
	}
}

// WithProcessStarter sets the starter used by Restart.
func WithProcessStarter(s system.ProcessStarter) Option {
	return func(c *Client) {
		c.starter = s
	}
}

// WithReadinessWait makes Restart wait up to timeout for the replacement
// runtime's control endpoint to answer. Zero returns as soon as the process
// is spawned.
func WithReadinessWait(timeout time.Duration) Option {
	return func(c *Client) {
		c.readinessWait = timeout
	}
}

// WithLogHighWaterMark bounds the records buffered per log stream.
func WithLogHighWaterMark(n int) Option {
	return func(c *Client) {
		c.highWaterMark = n
	}
}

// session identifies one log stream registered with the client.
type session struct {
	ended bool
}

// Client issues control API calls to local runtimes. It is safe for
// concurrent use.
type Client struct {
	address       func(pid int) string
	dial          DialFunc
	starter       system.ProcessStarter
	readinessWait time.Duration
	highWaterMark int

	mu           sync.Mutex
	closed       bool
	clients      map[int]*http.Client
	sessions     map[*session]*logstream.Stream
	restartLocks map[int]*sync.Mutex
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		address:       endpoint.Address,
		dial:          endpoint.Dial,
		starter:       system.DefaultStarter(),
		highWaterMark: logstream.DefaultHighWaterMark,
		clients:       make(map[int]*http.Client),
		sessions:      make(map[*session]*logstream.Stream),
		restartLocks:  make(map[int]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpClient returns the pid's client, creating its transport on first use.
func (c *Client) httpClient(pid int) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ClientClosed()
	}
	if hc, ok := c.clients[pid]; ok {
		return hc, nil
	}

	address := c.address(pid)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.dial(ctx, address)
		},
		MaxConnsPerHost:     1,
		MaxIdleConnsPerHost: 1,
		DisableCompression:  true,
	}
	hc := &http.Client{Transport: transport}
	c.clients[pid] = hc
	logging.Debug("opened control transport", "pid", pid, "address", address)
	return hc, nil
}

// dropTransport forgets hc if it is still the pid's client, so a dead pid
// does not keep a transport alive.
func (c *Client) dropTransport(pid int, hc *http.Client) {
	c.mu.Lock()
	if c.clients[pid] == hc {
		delete(c.clients, pid)
	}
	c.mu.Unlock()
	hc.CloseIdleConnections()
}

// unreachableError marks a call that never got a response from the runtime.
type unreachableError struct {
	err error
}

func (e *unreachableError) Error() string { return e.err.Error() }
func (e *unreachableError) Unwrap() error { return e.err }

// IsUnreachable reports whether err means the runtime's control endpoint
// could not be reached at all.
func IsUnreachable(err error) bool {
	var u *unreachableError
	return errors.As(err, &u)
}

// request performs one HTTP round trip against pid. rawQuery is sent as is.
// Transport failures are returned as unreachableError and drop the pid's
// transport; the client-closed error passes through.
func (c *Client) request(ctx context.Context, pid int, op errors.Op, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	hc, err := c.httpClient(pid)
	if err != nil {
		return nil, err
	}

	target := httpBase + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if host := header.Get("Host"); host != "" {
		req.Host = host
	}

	start := time.Now()
	resp, err := hc.Do(req)
	observability.RecordControlCall(string(op), time.Since(start), err == nil && resp.StatusCode == http.StatusOK)
	if err != nil {
		logging.Debug("control request failed", "pid", pid, "op", op, "error", err)
		if ctx.Err() == nil {
			c.dropTransport(pid, hc)
		}
		return nil, &unreachableError{err: err}
	}
	logging.Debug("control request", "pid", pid, "op", op, "status", resp.StatusCode)
	return resp, nil
}

// failure builds an operation error carrying detail or cause.
type failure func(detail string) *errors.CtlError

func transportFailure(fail failure, err error) error {
	var ctlErr *errors.CtlError
	if errors.As(err, &ctlErr) {
		return err
	}
	e := fail("")
	e.Cause = err
	return e
}

// remoteFailure turns a non-200 response into fail(body).
func remoteFailure(resp *http.Response, fail failure) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e := fail(resp.Status)
		e.Cause = err
		return e
	}
	return fail(string(body))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func getJSON[T any](ctx context.Context, c *Client, pid int, op errors.Op, path string, fail failure) (T, error) {
	var out T

	resp, err := c.request(ctx, pid, op, http.MethodGet, path, "", nil, nil)
	if err != nil {
		return out, transportFailure(fail, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return out, remoteFailure(resp, fail)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e := fail("")
		e.Cause = fmt.Errorf("invalid response body: %w", err)
		return out, e
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, pid int, op errors.Op, path string, fail failure) error {
	resp, err := c.request(ctx, pid, op, http.MethodPost, path, "", nil, nil)
	if err != nil {
		return transportFailure(fail, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return remoteFailure(resp, fail)
	}
	return nil
}

// Metadata fetches the runtime's metadata. It is never cached.
func (c *Client) Metadata(ctx context.Context, pid int) (RuntimeMetadata, error) {
	return getJSON[RuntimeMetadata](ctx, c, pid, errors.OpMetadata, RouteMetadata, errors.FailedToGetRuntimeMetadata)
}

// Services lists the services hosted by the runtime.
func (c *Client) Services(ctx context.Context, pid int) (Services, error) {
	return getJSON[Services](ctx, c, pid, errors.OpServices, RouteServices, errors.FailedToGetRuntimeServices)
}

// ServiceConfig fetches one service's configuration.
func (c *Client) ServiceConfig(ctx context.Context, pid int, serviceID string) (map[string]any, error) {
	path := RouteServices + "/" + url.PathEscape(serviceID) + "/config"
	return getJSON[map[string]any](ctx, c, pid, errors.OpServiceConfig, path, errors.FailedToGetRuntimeServiceConfig)
}

// Config fetches the full runtime configuration.
func (c *Client) Config(ctx context.Context, pid int) (map[string]any, error) {
	return getJSON[map[string]any](ctx, c, pid, errors.OpConfig, RouteConfig, errors.FailedToGetRuntimeConfig)
}

// Env fetches the runtime's process environment.
func (c *Client) Env(ctx context.Context, pid int) (map[string]string, error) {
	return getJSON[map[string]string](ctx, c, pid, errors.OpEnv, RouteEnv, errors.FailedToGetRuntimeEnv)
}

// Reload asks the runtime to reload its services.
func (c *Client) Reload(ctx context.Context, pid int) error {
	return c.post(ctx, pid, errors.OpReload, RouteReload, errors.FailedToReloadRuntime)
}

// Stop asks the runtime to shut down.
func (c *Client) Stop(ctx context.Context, pid int) error {
	return c.post(ctx, pid, errors.OpStop, RouteStop, errors.FailedToStopRuntime)
}

// OpenConnections returns the number of per-pid transports held.
func (c *Client) OpenConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// OpenSessions returns the number of log streams still registered.
func (c *Client) OpenSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close releases every transport and closes every open log stream. It is
// safe to call more than once; calls made afterwards fail.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	clients := c.clients
	sessions := c.sessions
	c.clients = make(map[int]*http.Client)
	c.sessions = make(map[*session]*logstream.Stream)
	c.mu.Unlock()

	for _, hc := range clients {
		hc.CloseIdleConnections()
	}
	for _, stream := range sessions {
		_ = stream.Close()
	}
	logging.Debug("control client closed", "transports", len(clients), "sessions", len(sessions))
	return nil
}

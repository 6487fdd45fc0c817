package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/logging"
)

// Forwarder sends a request to a service inside a runtime.
type Forwarder interface {
	Proxy(ctx context.Context, pid int, serviceID string, req control.ProxyRequest) (*http.Response, error)
}

// Config holds proxy configuration
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:3042")
	ListenAddr string

	// PID is the runtime requests are forwarded to
	PID int

	// ServiceID pins every request to one service. When empty the first
	// path segment selects the service.
	ServiceID string

	// RateLimitRequests is the max requests per service per window (0 = unlimited)
	RateLimitRequests int

	// RateLimitWindow is the rate limit window duration
	RateLimitWindow time.Duration

	// AccessLogPath is the path to write access logs (empty = no logging)
	AccessLogPath string

	// Logger for proxy operations
	Logger *slog.Logger
}

// hopHeaders are stripped before forwarding.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Keep-Alive",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy is an HTTP handler forwarding into a runtime's services
type Proxy struct {
	config      *Config
	forwarder   Forwarder
	rateLimiter *rateLimiter
	accessLog   *accessLogger
}

// New creates a new proxy instance
func New(cfg *Config, forwarder Forwarder) (*Proxy, error) {
	if cfg.PID <= 0 {
		return nil, fmt.Errorf("invalid runtime pid %d", cfg.PID)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Logger
	}

	p := &Proxy{
		config:    cfg,
		forwarder: forwarder,
	}

	if cfg.RateLimitRequests > 0 {
		p.rateLimiter = newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	if cfg.AccessLogPath != "" {
		al, err := newAccessLogger(cfg.AccessLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create access logger: %w", err)
		}
		p.accessLog = al
	}

	return p, nil
}

// route splits a request path into the target service and the path inside it.
func (p *Proxy) route(path string) (serviceID, subpath string) {
	if p.config.ServiceID != "" {
		if path == "" {
			path = "/"
		}
		return p.config.ServiceID, path
	}

	trimmed := strings.TrimPrefix(path, "/")
	serviceID, rest, _ := strings.Cut(trimmed, "/")
	return serviceID, "/" + rest
}

// ServeHTTP implements http.Handler
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	serviceID, subpath := p.route(r.URL.EscapedPath())
	if serviceID == "" {
		writeError(w, http.StatusNotFound, "not_found", "No service in request path")
		return
	}

	p.config.Logger.Debug("proxy request",
		"method", r.Method,
		"path", r.URL.Path,
		"service", serviceID,
		"remote", r.RemoteAddr)

	if p.rateLimiter != nil && !p.rateLimiter.allow(serviceID) {
		p.config.Logger.Warn("rate limit exceeded", "service", serviceID)
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
		return
	}

	header := r.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}

	target := subpath
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	resp, err := p.forwarder.Proxy(r.Context(), p.config.PID, serviceID, control.ProxyRequest{
		Method: r.Method,
		URL:    target,
		Header: header,
		Body:   r.Body,
	})
	if err != nil {
		p.config.Logger.Error("proxy error", "error", err, "path", r.URL.Path)
		writeError(lw, http.StatusBadGateway, "proxy_error", "Proxy error")
	} else {
		copyResponse(lw, resp)
	}

	if p.accessLog != nil {
		p.accessLog.log(accessEntry{
			Timestamp:   startTime,
			Duration:    time.Since(startTime),
			Service:     serviceID,
			Method:      r.Method,
			Path:        r.URL.Path,
			StatusCode:  lw.statusCode,
			RequestSize: r.ContentLength,
			RemoteAddr:  r.RemoteAddr,
		})
	}
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()

	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{"type": kind, "message": message},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Close closes the proxy and releases resources
func (p *Proxy) Close() error {
	if p.rateLimiter != nil {
		p.rateLimiter.stop()
	}
	if p.accessLog != nil {
		return p.accessLog.close()
	}
	return nil
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// rateLimiter implements per-service rate limiting
type rateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	mu          sync.Mutex
	stopClean   chan struct{}
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		stopClean:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := recent(rl.requests[key], now.Add(-rl.window))

	if len(valid) >= rl.maxRequests {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func recent(times []time.Time, since time.Time) []time.Time {
	var valid []time.Time
	for _, t := range times {
		if t.After(since) {
			valid = append(valid, t)
		}
	}
	return valid
}

// cleanupLoop drops services with no requests in the current window.
func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopClean:
			return
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := time.Now().Add(-rl.window)
	for key, reqs := range rl.requests {
		if valid := recent(reqs, windowStart); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.stopClean)
}

// accessLogger writes one JSON line per request with size-based rotation.
type accessLogger struct {
	path    string
	maxSize int64 // max file size in bytes before rotation (0 = no limit)
	file    *os.File
	enc     *json.Encoder
	size    int64
	mu      sync.Mutex
}

const (
	defaultAccessLogMaxSize = 50 * 1024 * 1024 // 50 MiB
	accessLogKeepFiles      = 3                 // keep current + 3 rotated files
)

type accessEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration_ns"`
	Service     string        `json:"service"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	StatusCode  int           `json:"status_code"`
	RequestSize int64         `json:"request_size"`
	RemoteAddr  string        `json:"remote_addr"`
}

func newAccessLogger(path string) (*accessLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	return &accessLogger{
		path:    path,
		maxSize: defaultAccessLogMaxSize,
		file:    f,
		enc:     json.NewEncoder(f),
		size:    size,
	}, nil
}

func (al *accessLogger) log(entry accessEntry) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if err := al.enc.Encode(entry); err != nil {
		logging.Warn("access log write failed", "error", err)
		return
	}

	// Approximate size tracking (exact size not critical)
	al.size += 256
	if al.maxSize > 0 && al.size >= al.maxSize {
		al.rotate()
	}
}

func (al *accessLogger) rotate() {
	al.file.Close()

	// Shift rotated files: .3 -> deleted, .2 -> .3, .1 -> .2, current -> .1
	for i := accessLogKeepFiles; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", al.path, i)
		if i == accessLogKeepFiles {
			os.Remove(old)
		}
		if i > 1 {
			os.Rename(fmt.Sprintf("%s.%d", al.path, i-1), old)
		} else {
			os.Rename(al.path, old)
		}
	}

	f, err := os.OpenFile(al.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		logging.Warn("access log rotation failed", "error", err)
		return
	}
	al.file = f
	al.enc = json.NewEncoder(f)
	al.size = 0
}

func (al *accessLogger) close() error {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.file.Close()
}

// Server wraps the proxy with lifecycle management
type Server struct {
	proxy  *Proxy
	server *http.Server
}

// NewServer creates a new proxy server
func NewServer(cfg *Config, forwarder Forwarder) (*Server, error) {
	proxy, err := New(cfg, forwarder)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      proxy,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for streaming responses
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		proxy:  proxy,
		server: server,
	}, nil
}

// Start starts the proxy server
func (s *Server) Start() error {
	s.proxy.config.Logger.Info("starting proxy server", "addr", s.server.Addr, "pid", s.proxy.config.PID)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the proxy server
func (s *Server) Stop() error {
	if err := s.server.Close(); err != nil {
		return err
	}
	return s.proxy.Close()
}

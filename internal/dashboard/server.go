package dashboard

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/observability"
)

// Controller is the subset of the control client the dashboard drives.
type Controller interface {
	Metadata(ctx context.Context, pid int) (control.RuntimeMetadata, error)
	Services(ctx context.Context, pid int) (control.Services, error)
	ServiceConfig(ctx context.Context, pid int, serviceID string) (map[string]any, error)
	Config(ctx context.Context, pid int) (map[string]any, error)
	Env(ctx context.Context, pid int) (map[string]string, error)
	Reload(ctx context.Context, pid int) error
	Stop(ctx context.Context, pid int) error
}

// Lister enumerates runtimes. *discovery.Service satisfies it.
type Lister interface {
	ListRuntimes(ctx context.Context) ([]control.RuntimeMetadata, error)
}

// Server is the management side channel.
type Server struct {
	client  Controller
	lister  Lister
	started time.Time
	engine  *gin.Engine

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
}

// New creates a dashboard backed by client and lister.
func New(client Controller, lister Lister) *Server {
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(logging.Logger))
	r.Use(observability.RequestMetricsMiddleware("dashboard"))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		client:  client,
		lister:  lister,
		started: time.Now(),
		engine:  r,
	}
	s.registerRoutes()
	return s
}

// Handler returns the dashboard's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/runtimes")
	api.GET("", func(c *gin.Context) {
		runtimes, err := s.lister.ListRuntimes(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if runtimes == nil {
			runtimes = []control.RuntimeMetadata{}
		}
		c.JSON(http.StatusOK, gin.H{"runtimes": runtimes})
	})

	runtime := api.Group("/:pid")
	runtime.GET("/metadata", s.read(func(ctx context.Context, pid int, _ *gin.Context) (any, error) {
		return s.client.Metadata(ctx, pid)
	}))
	runtime.GET("/services", s.read(func(ctx context.Context, pid int, _ *gin.Context) (any, error) {
		return s.client.Services(ctx, pid)
	}))
	runtime.GET("/services/:id/config", s.read(func(ctx context.Context, pid int, c *gin.Context) (any, error) {
		return s.client.ServiceConfig(ctx, pid, c.Param("id"))
	}))
	runtime.GET("/config", s.read(func(ctx context.Context, pid int, _ *gin.Context) (any, error) {
		return s.client.Config(ctx, pid)
	}))
	runtime.GET("/env", s.read(func(ctx context.Context, pid int, _ *gin.Context) (any, error) {
		return s.client.Env(ctx, pid)
	}))
	runtime.POST("/reload", s.act(s.client.Reload))
	runtime.POST("/stop", s.act(s.client.Stop))
}

func parsePID(c *gin.Context) (int, bool) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil || pid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid pid %q", c.Param("pid"))})
		return 0, false
	}
	return pid, true
}

func (s *Server) read(fn func(ctx context.Context, pid int, c *gin.Context) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, ok := parsePID(c)
		if !ok {
			return
		}
		body, err := fn(c.Request.Context(), pid, c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) act(fn func(ctx context.Context, pid int) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, ok := parsePID(c)
		if !ok {
			return
		}
		if err := fn(c.Request.Context(), pid); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// writeError maps control errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.HasCode(err, errors.ExitRuntimeNotFound), control.IsUnreachable(err):
		status = http.StatusNotFound
	case errors.HasCode(err, errors.ExitClientClosed):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.listener = l
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logging.Warn("dashboard stopped", "addr", addr, "error", err)
		}
	}()
	logging.Info("dashboard listening", "addr", l.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the dashboard down gracefully.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

package controlapi

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/observability"
)

// Backend performs the control operations of one runtime.
type Backend interface {
	Metadata(ctx context.Context) (control.RuntimeMetadata, error)
	Services(ctx context.Context) (control.Services, error)
	ServiceConfig(ctx context.Context, serviceID string) (map[string]any, error)
	Config(ctx context.Context) (map[string]any, error)
	Env(ctx context.Context) (map[string]string, error)
	Reload(ctx context.Context) error
	Stop(ctx context.Context) error

	// SubscribeLogs returns a channel of raw log records. The backend closes
	// the channel to end the subscription and must stop sending once ctx is
	// done.
	SubscribeLogs(ctx context.Context, filter control.LogFilter) (<-chan []byte, error)

	// ServiceHandler returns the handler serving requests for a service.
	ServiceHandler(serviceID string) (http.Handler, bool)
}

const closeWriteTimeout = time.Second

// Server serves the control API for one runtime.
type Server struct {
	backend  Backend
	engine   *gin.Engine
	upgrader websocket.Upgrader

	// base is cancelled on Close so open log subscriptions end.
	base   context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	http *http.Server
}

// New creates a Server for backend.
func New(backend Backend) *Server {
	observability.RegisterMetrics()

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend: backend,
		base:    base,
		cancel:  cancel,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(logging.Logger))
	r.Use(observability.RequestMetricsMiddleware("controlapi"))
	s.engine = r
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler serving the control routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/metadata", func(c *gin.Context) {
		respond(c, func(ctx context.Context) (any, error) { return s.backend.Metadata(ctx) })
	})
	api.GET("/services", func(c *gin.Context) {
		respond(c, func(ctx context.Context) (any, error) { return s.backend.Services(ctx) })
	})
	api.GET("/services/:id/config", func(c *gin.Context) {
		id := c.Param("id")
		respond(c, func(ctx context.Context) (any, error) { return s.backend.ServiceConfig(ctx, id) })
	})
	api.GET("/config", func(c *gin.Context) {
		respond(c, func(ctx context.Context) (any, error) { return s.backend.Config(ctx) })
	})
	api.GET("/env", func(c *gin.Context) {
		respond(c, func(ctx context.Context) (any, error) { return s.backend.Env(ctx) })
	})
	api.POST("/reload", func(c *gin.Context) {
		acknowledge(c, s.backend.Reload)
	})
	api.POST("/stop", func(c *gin.Context) {
		acknowledge(c, s.backend.Stop)
	})
	api.GET("/logs", s.handleLogs)
	api.Any("/services/:id/proxy/*path", s.handleProxy)
}

func respond(c *gin.Context, fn func(ctx context.Context) (any, error)) {
	body, err := fn(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, body)
}

func acknowledge(c *gin.Context, fn func(ctx context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleProxy(c *gin.Context) {
	id := c.Param("id")
	handler, ok := s.backend.ServiceHandler(id)
	if !ok {
		c.String(http.StatusNotFound, "service not found: "+id)
		return
	}

	escaped := proxySubpath(c.Request.URL.EscapedPath())
	path, err := url.PathUnescape(escaped)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid proxy path: "+err.Error())
		return
	}

	req := c.Request.Clone(c.Request.Context())
	req.URL.Path = path
	req.URL.RawPath = escaped
	req.RequestURI = ""
	handler.ServeHTTP(c.Writer, req)
}

// proxySubpath returns the still-escaped part of a proxy route path after
// "/api/services/<id>/proxy". The id segment is escaped, so it holds no '/'.
func proxySubpath(escaped string) string {
	rest := strings.TrimPrefix(escaped, "/api/services/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i:]
	} else {
		rest = ""
	}
	rest = strings.TrimPrefix(rest, "/proxy")
	if rest == "" {
		return "/"
	}
	return rest
}

func (s *Server) handleLogs(c *gin.Context) {
	filter := control.LogFilter{
		Level:     c.Query("level"),
		Pretty:    strings.EqualFold(c.Query("pretty"), "true"),
		ServiceID: c.Query("serviceId"),
	}

	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	records, err := s.backend.SubscribeLogs(ctx, filter)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an error response.
		logging.Debug("log stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case record, ok := <-records:
			if !ok {
				closeNormally(conn)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, record); err != nil {
				logging.Debug("log stream write failed", "error", err)
				return
			}
		case <-ctx.Done():
			closeNormally(conn)
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
}

func (s *Server) httpServer() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http == nil {
		s.http = &http.Server{
			Handler:           s.engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s.http
}

// Serve answers control requests on l until Close.
func (s *Server) Serve(l net.Listener) error {
	err := s.httpServer().Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Start listens on the control endpoint at address and serves in the
// background.
func (s *Server) Start(address string) error {
	l, err := endpoint.Listen(address)
	if err != nil {
		return err
	}

	srv := s.httpServer()
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logging.Warn("control server stopped", "address", address, "error", err)
		}
	}()
	logging.Debug("control server listening", "address", address)
	return nil
}

// Close ends every log subscription and shuts the server down.
func (s *Server) Close(ctx context.Context) error {
	s.cancel()
	return s.httpServer().Shutdown(ctx)
}

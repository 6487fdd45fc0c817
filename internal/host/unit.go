package host

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/firefly-engineering/rtctl/internal/controlapi"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

// Option configures a hosted unit.
type Option func(*unitOptions)

type unitOptions struct {
	address string
	onStart func(*Host)
}

// WithAddress overrides the control endpoint address.
func WithAddress(address string) Option {
	return func(o *unitOptions) {
		o.address = address
	}
}

// WithOnStart runs fn once the host is serving.
func WithOnStart(fn func(*Host)) Option {
	return func(o *unitOptions) {
		o.onStart = fn
	}
}

// Unit returns an execution unit body that hosts the runtime config it is
// started with. The unit exits on a shutdown message or a control API stop.
func Unit(opts ...Option) supervisor.UnitFunc {
	o := unitOptions{address: endpoint.Address(os.Getpid())}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, uo supervisor.UnitOptions, inbox <-chan supervisor.Message, ready func()) error {
		h, err := New(uo.Config)
		if err != nil {
			return err
		}
		defer h.logs.close()

		ctl := controlapi.New(h)
		if err := ctl.Start(o.address); err != nil {
			return fmt.Errorf("failed to start control endpoint: %w", err)
		}
		servers := []interface{ Close(context.Context) error }{ctl}

		if uo.Config.Server != nil {
			entry, err := h.serveEntrypoint()
			if err != nil {
				closeAll(servers)
				return err
			}
			servers = append(servers, entry)
		}
		defer closeAll(servers)

		if o.onStart != nil {
			o.onStart(h)
		}
		ready()
		h.Log(LevelInfo, "runtime", "runtime started")

		var changes <-chan string
		if uo.LoaderHook != nil {
			changes = uo.LoaderHook.Changes
		}

		for {
			select {
			case msg := <-inbox:
				switch msg.Kind {
				case supervisor.MessageShutdown:
					h.Log(LevelInfo, "runtime", "shutting down: "+msg.Reason)
					return nil
				case supervisor.MessageDiagnostics:
					h.diagnostics()
				}
			case path, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				h.Log(LevelInfo, "runtime", "file changed: "+path)
				if err := h.Reload(ctx); err != nil {
					h.Log(LevelError, "runtime", "reload failed: "+err.Error())
				}
			case <-h.Stopped():
				return nil
			}
		}
	}
}

// diagnostics publishes a snapshot of the process state.
func (h *Host) diagnostics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	h.Log(LevelInfo, "runtime", fmt.Sprintf("diagnostics: goroutines=%d heapAlloc=%d numGC=%d",
		runtime.NumGoroutine(), mem.HeapAlloc, mem.NumGC))
}

type entrypointServer struct {
	srv *http.Server
}

func (e *entrypointServer) Close(ctx context.Context) error {
	return e.srv.Shutdown(ctx)
}

// serveEntrypoint exposes the entrypoint service on the configured server
// address.
func (h *Host) serveEntrypoint() (*entrypointServer, error) {
	handler, ok := h.ServiceHandler(h.entrypoint())
	if !ok {
		return nil, fmt.Errorf("entrypoint service %q not found", h.entrypoint())
	}

	addr := strings.TrimPrefix(h.URL(), "http://")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logging.Warn("entrypoint server stopped", "error", err)
		}
	}()
	logging.Info("entrypoint listening", "url", h.URL())
	return &entrypointServer{srv: srv}, nil
}

func closeAll(servers []interface{ Close(context.Context) error }) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Close(ctx); err != nil {
			logging.Debug("failed to close server", "error", err)
		}
	}
}

package host

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
)

// serviceType is reported for every hosted service.
const serviceType = "static"

// Host serves the services of one runtime config. It implements
// controlapi.Backend.
type Host struct {
	cfg       *config.RuntimeConfig
	startedAt time.Time
	logs      *logHub

	mu       sync.RWMutex
	services []config.ServiceEntry

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a Host for cfg and resolves its services.
func New(cfg *config.RuntimeConfig) (*Host, error) {
	h := &Host{
		cfg:       cfg,
		startedAt: time.Now(),
		logs:      newLogHub(),
		stopped:   make(chan struct{}),
	}
	if err := h.resolve(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) resolve() error {
	services, err := h.cfg.ResolveServices()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.services = services
	h.mu.Unlock()
	return nil
}

// Stopped is closed once a stop has been requested through the control API.
func (h *Host) Stopped() <-chan struct{} {
	return h.stopped
}

// Log publishes a record to log stream subscribers.
func (h *Host) Log(level int, name, msg string) {
	h.logs.publish(level, name, msg)
}

func (h *Host) entrypoint() string {
	if h.cfg.Entrypoint != "" {
		return h.cfg.Entrypoint
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.services) > 0 {
		return h.services[0].ID
	}
	return ""
}

// URL returns the entrypoint's public address, or "" when no server is
// configured.
func (h *Host) URL() string {
	if h.cfg.Server == nil {
		return ""
	}
	host := h.cfg.Server.Hostname
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(h.cfg.Server.Port))
}

func (h *Host) service(id string) (config.ServiceEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, svc := range h.services {
		if svc.ID == id {
			return svc, true
		}
	}
	return config.ServiceEntry{}, false
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func (h *Host) Metadata(ctx context.Context) (control.RuntimeMetadata, error) {
	cwd, _ := os.Getwd()
	execPath, _ := os.Executable()
	return control.RuntimeMetadata{
		PID:                 os.Getpid(),
		Cwd:                 cwd,
		Argv:                os.Args,
		UptimeSeconds:       time.Since(h.startedAt).Seconds(),
		ExecPath:            execPath,
		NodeVersion:         runtime.Version(),
		ProjectDir:          h.cfg.Dir(),
		PackageName:         filepath.Base(h.cfg.Dir()),
		URL:                 h.URL(),
		PlatformaticVersion: version(),
	}, nil
}

func (h *Host) Services(ctx context.Context) (control.Services, error) {
	entrypoint := h.entrypoint()
	url := h.URL()

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := control.Services{
		Entrypoint: entrypoint,
		Services:   make([]control.ServiceDescriptor, 0, len(h.services)),
	}
	for _, svc := range h.services {
		desc := control.ServiceDescriptor{
			ID:         svc.ID,
			Type:       serviceType,
			Status:     "started",
			Entrypoint: svc.ID == entrypoint,
			LocalURL:   fmt.Sprintf("http://%s.plt.local", svc.ID),
		}
		if desc.Entrypoint {
			desc.URL = url
		}
		out.Services = append(out.Services, desc)
	}
	return out, nil
}

func (h *Host) ServiceConfig(ctx context.Context, serviceID string) (map[string]any, error) {
	svc, ok := h.service(serviceID)
	if !ok {
		return nil, fmt.Errorf("service %s not found", serviceID)
	}
	cfg := map[string]any{
		"id":   svc.ID,
		"path": svc.Path,
		"type": serviceType,
	}
	if svc.Config != "" {
		cfg["config"] = svc.Config
	}
	return cfg, nil
}

func (h *Host) Config(ctx context.Context) (map[string]any, error) {
	if h.cfg.Raw == nil {
		return map[string]any{}, nil
	}
	return h.cfg.Raw, nil
}

func (h *Host) Env(ctx context.Context) (map[string]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

// Reload resolves the service list again.
func (h *Host) Reload(ctx context.Context) error {
	if err := h.resolve(); err != nil {
		return err
	}
	h.Log(LevelInfo, "runtime", "services reloaded")
	return nil
}

func (h *Host) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		h.Log(LevelInfo, "runtime", "stop requested")
		close(h.stopped)
	})
	return nil
}

func (h *Host) SubscribeLogs(ctx context.Context, filter control.LogFilter) (<-chan []byte, error) {
	return h.logs.subscribe(ctx, filter), nil
}

// ServiceHandler serves the service's directory.
func (h *Host) ServiceHandler(serviceID string) (http.Handler, bool) {
	svc, ok := h.service(serviceID)
	if !ok {
		return nil, false
	}
	return http.FileServer(http.Dir(svc.Path)), true
}

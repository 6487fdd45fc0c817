// Package app provides the application context for rtctl.
// It allows dependency injection for testing.
package app

import (
	"context"

	"github.com/firefly-engineering/rtctl/internal/audit"
	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/discovery"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/system"
)

// App holds the application dependencies
type App struct {
	// Paths holds the configured paths
	Paths *config.Paths

	// Starter spawns replacement runtimes on restart
	Starter system.ProcessStarter

	// Client talks to runtimes in Paths.SocketDir
	Client *control.Client

	// Discovery lists runtimes through Client
	Discovery *discovery.Service

	// Audit records control actions
	Audit *audit.Logger
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithStarter sets a custom process starter
func WithStarter(s system.ProcessStarter) Option {
	return func(a *App) {
		a.Starter = s
	}
}

// WithAudit sets a custom audit logger
func WithAudit(l *audit.Logger) Option {
	return func(a *App) {
		a.Audit = l
	}
}

// New creates a new App with the given options. The client and discovery
// service are bound to the configured socket directory.
func New(opts ...Option) *App {
	app := &App{
		Paths:   config.DefaultPaths(),
		Starter: system.DefaultStarter(),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.Audit == nil {
		app.Audit = audit.NewLogger(app.Paths.AuditLog)
	}
	app.Client = app.NewClient()
	app.Discovery = discovery.New(app.Client, discovery.WithCandidateLister(app.candidates))
	return app
}

func (a *App) address(pid int) string {
	return endpoint.AddressIn(a.Paths.SocketDir, pid)
}

func (a *App) candidates(ctx context.Context) ([]int, error) {
	return endpoint.CandidatesIn(a.Paths.SocketDir)
}

// NewClient creates an extra client bound to the app's paths and starter.
// The caller closes it.
func (a *App) NewClient(opts ...control.Option) *control.Client {
	base := []control.Option{
		control.WithAddressFunc(a.address),
		control.WithProcessStarter(a.Starter),
	}
	return control.New(append(base, opts...)...)
}

// Resolve finds the one runtime matching sel.
func (a *App) Resolve(ctx context.Context, sel discovery.Selector) (control.RuntimeMetadata, error) {
	return a.Discovery.ResolveOne(ctx, sel)
}

// Record writes an audit event. Failures are logged, not returned.
func (a *App) Record(eventType audit.EventType, meta control.RuntimeMetadata, details string) {
	if err := a.Audit.LogEvent(eventType, meta.PID, meta.PackageName, details); err != nil {
		logging.Debug("failed to write audit event", "error", err)
	}
}

// Close releases the app's client.
func (a *App) Close() error {
	return a.Client.Close()
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}

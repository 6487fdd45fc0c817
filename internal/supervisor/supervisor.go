package supervisor

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/dashboard"
	"github.com/firefly-engineering/rtctl/internal/discovery"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/observability"
)

// cleanupTimeout bounds closing the side channel.
const cleanupTimeout = 5 * time.Second

// SideChannel is a running management side channel.
type SideChannel interface {
	Addr() string
	Close(ctx context.Context) error
}

// SideChannelOptions configure a side channel started on readiness.
type SideChannelOptions struct {
	Hostname string
	Port     int
	Client   *control.Client
}

// SideChannelFactory starts a side channel.
type SideChannelFactory func(ctx context.Context, opts SideChannelOptions) (SideChannel, error)

// DashboardSideChannel starts the dashboard as the side channel.
func DashboardSideChannel(lister dashboard.Lister) SideChannelFactory {
	return func(ctx context.Context, opts SideChannelOptions) (SideChannel, error) {
		if lister == nil {
			lister = discovery.New(opts.Client)
		}
		srv := dashboard.New(opts.Client, lister)
		if err := srv.Start(net.JoinHostPort(opts.Hostname, strconv.Itoa(opts.Port))); err != nil {
			return nil, err
		}
		return srv, nil
	}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSideChannelFactory overrides how the side channel is started.
func WithSideChannelFactory(f SideChannelFactory) Option {
	return func(s *Supervisor) {
		s.newSideChannel = f
	}
}

// WithSignals replaces OS signal registration with ch.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) {
		s.signals = ch
	}
}

// WithClientOptions configures the control client built on readiness.
func WithClientOptions(opts ...control.Option) Option {
	return func(s *Supervisor) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// WithTransitionHook registers fn to run after every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(s *Supervisor) {
		s.onTransition = fn
	}
}

// WithWatchDirs adds directories watched when hot reload is enabled.
func WithWatchDirs(dirs ...string) Option {
	return func(s *Supervisor) {
		s.watchDirs = append(s.watchDirs, dirs...)
	}
}

// Supervisor runs one execution unit. A Supervisor is single use.
type Supervisor struct {
	cfg            *config.RuntimeConfig
	factory        UnitFactory
	newSideChannel SideChannelFactory
	signals        <-chan os.Signal
	clientOpts     []control.Option
	onTransition   func(from, to State)
	watchDirs      []string

	shutdown     chan struct{}
	shutdownOnce sync.Once

	mu      sync.Mutex
	state   State
	client  *control.Client
	side    SideChannel
	watcher *configWatcher
}

// New creates a Supervisor for cfg whose unit is started by factory.
func New(cfg *config.RuntimeConfig, factory UnitFactory, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:            cfg,
		factory:        factory,
		newSideChannel: DashboardSideChannel(nil),
		shutdown:       make(chan struct{}),
		state:          StateStarting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Client returns the control client built on readiness, or nil.
func (s *Supervisor) Client() *control.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// SideChannelAddr returns the side channel's address, or "".
func (s *Supervisor) SideChannelAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.side == nil {
		return ""
	}
	return s.side.Addr()
}

// Shutdown asks the unit to shut down, as a termination signal would.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	hook := s.onTransition
	s.mu.Unlock()

	logging.Debug("supervisor state change", "from", from, "to", to)
	observability.RecordTransition(to.String())
	if hook != nil {
		hook(from, to)
	}
}

// Run starts the unit and supervises it until it exits. Cancelling ctx
// requests a shutdown like a termination signal. The returned error is a
// UnitCrashed error when the unit failed before shutdown was requested.
func (s *Supervisor) Run(ctx context.Context) error {
	logging.Debug("starting execution unit", "config", s.cfg.Path, "hotReload", s.cfg.HotReload)

	opts := UnitOptions{Config: s.cfg}
	if s.cfg.HotReload {
		w, err := newConfigWatcher(s.cfg.Path, s.resolveWatchDirs())
		if err != nil {
			s.transition(StateCrashed)
			return errors.ConfigError("failed to watch runtime config", err)
		}
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
		opts.LoaderHook = w.hook()
	}

	unit, err := s.factory(ctx, opts)
	if err != nil {
		s.cleanup()
		s.transition(StateCrashed)
		return errors.UnitCrashed(err)
	}

	signals, stopSignals := s.subscribeSignals()
	defer stopSignals()

	var configChanges <-chan string
	if s.watcher != nil {
		configChanges = s.watcher.configChanges
	}
	events := unit.Events()
	shutdown := s.shutdown
	done := ctx.Done()

	for {
		select {
		case ev := <-events:
			if ev.Kind != EventReady || s.State() != StateStarting {
				continue
			}
			events = nil
			if err := s.ready(ctx); err != nil {
				logging.Error("failed to start management side channel", "error", err)
				unit.Send(Message{Kind: MessageShutdown, Reason: "side channel failed"})
				<-unit.Exited()
				s.cleanup()
				s.transition(StateCrashed)
				return errors.Wrap(errors.ExitGeneralError, "failed to start management side channel", err)
			}
			s.transition(StateRunning)

		case sig := <-signals:
			if diagnosticsSignal != nil && sig == diagnosticsSignal {
				logging.Debug("relaying diagnostics signal", "signal", sig)
				unit.Send(Message{Kind: MessageDiagnostics, Reason: sig.String()})
				continue
			}
			s.requestShutdown(unit, sig.String())

		case <-shutdown:
			shutdown = nil
			s.requestShutdown(unit, "shutdown requested")

		case <-done:
			done = nil
			s.requestShutdown(unit, "context cancelled")

		case path := <-configChanges:
			logging.Info("runtime config changed; restart the runtime to apply it", "path", path)

		case <-unit.Exited():
			return s.finish(unit.Err())
		}
	}
}

// ready builds the control client and the side channel.
func (s *Supervisor) ready(ctx context.Context) error {
	s.transition(StateReady)

	client := control.New(s.clientOpts...)
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	if s.cfg.Dashboard == nil {
		return nil
	}

	host, port := s.cfg.Dashboard.Address()
	sc, err := s.newSideChannel(ctx, SideChannelOptions{Hostname: host, Port: port, Client: client})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.side = sc
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) requestShutdown(unit Unit, reason string) {
	if !s.State().Terminal() && s.State() != StateShuttingDown {
		s.transition(StateShuttingDown)
	}
	logging.Debug("relaying shutdown", "reason", reason)
	unit.Send(Message{Kind: MessageShutdown, Reason: reason})
}

func (s *Supervisor) finish(unitErr error) error {
	shuttingDown := s.State() == StateShuttingDown
	s.cleanup()

	if unitErr == nil {
		s.transition(StateStopped)
		return nil
	}
	if shuttingDown {
		s.transition(StateStopped)
		return errors.Wrap(errors.ExitGeneralError, "execution unit failed during shutdown", unitErr)
	}
	s.transition(StateCrashed)
	return errors.UnitCrashed(unitErr)
}

// cleanup stops the config watcher and closes the side channel and client.
func (s *Supervisor) cleanup() {
	s.mu.Lock()
	watcher, sc, client := s.watcher, s.side, s.client
	s.mu.Unlock()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logging.Debug("failed to stop config watcher", "error", err)
		}
	}
	if sc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		if err := sc.Close(ctx); err != nil {
			logging.Warn("failed to close management side channel", "error", err)
		}
		cancel()
	}
	if client != nil {
		_ = client.Close()
	}
}

func (s *Supervisor) subscribeSignals() (<-chan os.Signal, func()) {
	if s.signals != nil {
		return s.signals, func() {}
	}

	sigs := append([]os.Signal{}, terminationSignals...)
	if diagnosticsSignal != nil {
		sigs = append(sigs, diagnosticsSignal)
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}

func (s *Supervisor) resolveWatchDirs() []string {
	dirs := append([]string{}, s.watchDirs...)
	services, err := s.cfg.ResolveServices()
	if err != nil {
		logging.Warn("not watching service directories", "error", err)
		return dirs
	}
	for _, svc := range services {
		dirs = append(dirs, svc.Path)
	}
	return dirs
}

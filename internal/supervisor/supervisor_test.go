package supervisor

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/errors"
)

const testTimeout = 5 * time.Second

type transitions struct {
	mu     sync.Mutex
	states []State
}

func (tr *transitions) record(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.states = append(tr.states, to)
}

func (tr *transitions) get() []State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]State(nil), tr.states...)
}

// serveUntilShutdown is a unit body that becomes ready and exits cleanly on
// the first shutdown message. Every message is forwarded to seen.
func serveUntilShutdown(seen chan<- Message) UnitFunc {
	return func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
		ready()
		for msg := range inbox {
			if seen != nil {
				seen <- msg
			}
			if msg.Kind == MessageShutdown {
				return nil
			}
		}
		return nil
	}
}

func testConfig(t *testing.T) *config.RuntimeConfig {
	return &config.RuntimeConfig{Path: filepath.Join(t.TempDir(), "platformatic.json")}
}

func waitForState(t *testing.T, s *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %v, want %v", s.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runAsync(ctx context.Context, s *Supervisor) <-chan error {
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()
	return result
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Run() did not return")
		return nil
	}
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSupervisor_CleanShutdown(t *testing.T) {
	var tr transitions
	seen := make(chan Message, 4)
	s := New(testConfig(t), GoroutineFactory(serveUntilShutdown(seen)), WithTransitionHook(tr.record))

	result := runAsync(context.Background(), s)
	waitForState(t, s, StateRunning)

	if s.Client() == nil {
		t.Error("Client() should be available once running")
	}
	if s.SideChannelAddr() != "" {
		t.Error("no side channel should start without a dashboard config")
	}

	s.Shutdown()
	s.Shutdown()

	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	msg := <-seen
	if msg.Kind != MessageShutdown {
		t.Errorf("unit received %v, want shutdown", msg.Kind)
	}

	want := []State{StateReady, StateRunning, StateShuttingDown, StateStopped}
	if got := tr.get(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestSupervisor_ContextCancel(t *testing.T) {
	seen := make(chan Message, 4)
	s := New(testConfig(t), GoroutineFactory(serveUntilShutdown(seen)))

	ctx, cancel := context.WithCancel(context.Background())
	result := runAsync(ctx, s)
	waitForState(t, s, StateRunning)
	cancel()

	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if msg := <-seen; msg.Reason != "context cancelled" {
		t.Errorf("shutdown reason = %q", msg.Reason)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", s.State())
	}
}

func TestSupervisor_Crash(t *testing.T) {
	tests := []struct {
		name string
		fn   UnitFunc
	}{
		{
			name: "after ready",
			fn: func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
				ready()
				return stderrors.New("boom")
			},
		},
		{
			name: "before ready",
			fn: func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
				return stderrors.New("boom")
			},
		},
		{
			name: "panic",
			fn: func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
				panic("boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testConfig(t), GoroutineFactory(tt.fn))

			err := waitResult(t, runAsync(context.Background(), s))
			if !errors.HasCode(err, errors.ExitUnitCrashed) {
				t.Fatalf("Run() error = %v, want unit crashed", err)
			}
			if s.State() != StateCrashed {
				t.Errorf("State() = %v, want crashed", s.State())
			}
		})
	}
}

func TestSupervisor_FactoryError(t *testing.T) {
	factory := func(ctx context.Context, opts UnitOptions) (Unit, error) {
		return nil, stderrors.New("no unit")
	}
	s := New(testConfig(t), factory)

	err := s.Run(context.Background())
	if !errors.HasCode(err, errors.ExitUnitCrashed) {
		t.Fatalf("Run() error = %v, want unit crashed", err)
	}
	if s.State() != StateCrashed {
		t.Errorf("State() = %v, want crashed", s.State())
	}
}

func TestSupervisor_ErrorDuringShutdown(t *testing.T) {
	fn := func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
		ready()
		<-inbox
		return stderrors.New("close failed")
	}
	s := New(testConfig(t), GoroutineFactory(fn))

	result := runAsync(context.Background(), s)
	waitForState(t, s, StateRunning)
	s.Shutdown()

	err := waitResult(t, result)
	if err == nil || errors.HasCode(err, errors.ExitUnitCrashed) {
		t.Fatalf("Run() error = %v, want a non-crash failure", err)
	}
	if errors.GetExitCode(err) != errors.ExitGeneralError {
		t.Errorf("exit code = %d, want %d", errors.GetExitCode(err), errors.ExitGeneralError)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", s.State())
	}
}

type fakeSideChannel struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeSideChannel) Addr() string { return "127.0.0.1:4042" }

func (f *fakeSideChannel) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSideChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestSupervisor_SideChannelDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dashboard = &config.DashboardConfig{}

	side := &fakeSideChannel{}
	var got SideChannelOptions
	factory := func(ctx context.Context, opts SideChannelOptions) (SideChannel, error) {
		got = opts
		return side, nil
	}
	s := New(cfg, GoroutineFactory(serveUntilShutdown(nil)), WithSideChannelFactory(factory))

	result := runAsync(context.Background(), s)
	waitForState(t, s, StateRunning)

	if got.Hostname != config.DefaultDashboardHostname || got.Port != config.DefaultDashboardPort {
		t.Errorf("side channel address = %s:%d", got.Hostname, got.Port)
	}
	if got.Client == nil {
		t.Error("side channel should receive the control client")
	}
	if s.SideChannelAddr() != "127.0.0.1:4042" {
		t.Errorf("SideChannelAddr() = %q", s.SideChannelAddr())
	}

	s.Shutdown()
	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !side.isClosed() {
		t.Error("side channel should be closed after the unit stops")
	}
}

func TestSupervisor_SideChannelFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dashboard = &config.DashboardConfig{Port: 9999}

	seen := make(chan Message, 4)
	factory := func(ctx context.Context, opts SideChannelOptions) (SideChannel, error) {
		return nil, stderrors.New("address in use")
	}
	s := New(cfg, GoroutineFactory(serveUntilShutdown(seen)), WithSideChannelFactory(factory))

	err := waitResult(t, runAsync(context.Background(), s))
	if err == nil {
		t.Fatal("Run() should fail when the side channel cannot start")
	}
	if s.State() != StateCrashed {
		t.Errorf("State() = %v, want crashed", s.State())
	}
	if msg := <-seen; msg.Kind != MessageShutdown {
		t.Errorf("unit received %v, want shutdown", msg.Kind)
	}
}

func TestSupervisor_LoaderHook(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		hooks := make(chan *LoaderHook, 1)
		fn := func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
			hooks <- opts.LoaderHook
			return nil
		}
		s := New(testConfig(t), GoroutineFactory(fn))
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if hook := <-hooks; hook != nil {
			t.Error("LoaderHook should be nil without hot reload")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		dir := t.TempDir()
		serviceDir := filepath.Join(dir, "services", "api")
		if err := os.MkdirAll(serviceDir, 0755); err != nil {
			t.Fatal(err)
		}
		cfg := &config.RuntimeConfig{
			Path:      filepath.Join(dir, "platformatic.json"),
			HotReload: true,
			Services:  []config.ServiceEntry{{ID: "api", Path: "services/api"}},
		}

		changes := make(chan string, 1)
		fn := func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
			if opts.LoaderHook == nil {
				return stderrors.New("missing loader hook")
			}
			ready()
			for {
				select {
				case path := <-opts.LoaderHook.Changes:
					select {
					case changes <- path:
					default:
					}
				case msg := <-inbox:
					if msg.Kind == MessageShutdown {
						return nil
					}
				}
			}
		}
		s := New(cfg, GoroutineFactory(fn))

		result := runAsync(context.Background(), s)
		waitForState(t, s, StateRunning)

		target := filepath.Join(serviceDir, "index.js")
		if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case path := <-changes:
			if path != target {
				t.Errorf("change path = %q, want %q", path, target)
			}
		case <-time.After(testTimeout):
			t.Error("loader hook did not receive the file change")
		}

		s.Shutdown()
		if err := waitResult(t, result); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	})
}

func TestSupervisor_WatchDirs(t *testing.T) {
	dir := t.TempDir()
	extra := t.TempDir()
	cfg := &config.RuntimeConfig{
		Path:      filepath.Join(dir, "platformatic.json"),
		HotReload: true,
	}

	changes := make(chan string, 1)
	fn := func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error {
		ready()
		for {
			select {
			case path := <-opts.LoaderHook.Changes:
				select {
				case changes <- path:
				default:
				}
			case msg := <-inbox:
				if msg.Kind == MessageShutdown {
					return nil
				}
			}
		}
	}
	s := New(cfg, GoroutineFactory(fn), WithWatchDirs(extra))

	result := runAsync(context.Background(), s)
	waitForState(t, s, StateRunning)

	target := filepath.Join(extra, "schema.graphql")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changes:
		if path != target {
			t.Errorf("change path = %q, want %q", path, target)
		}
	case <-time.After(testTimeout):
		t.Error("loader hook did not receive a change in the extra watch dir")
	}

	s.Shutdown()
	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
		term  bool
	}{
		{StateStarting, "starting", false},
		{StateReady, "ready", false},
		{StateRunning, "running", false},
		{StateShuttingDown, "shutting-down", false},
		{StateStopped, "stopped", true},
		{StateCrashed, "crashed", true},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.state.Terminal(); got != tt.term {
			t.Errorf("%s.Terminal() = %v, want %v", tt.want, got, tt.term)
		}
	}
}

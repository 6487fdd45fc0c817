package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/controlapi"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
)

// TestEnv holds a private socket directory populated with fake runtimes.
type TestEnv struct {
	T         *testing.T
	SocketDir string
}

// NewTestEnv creates a test environment. The socket directory is kept short
// so socket paths stay under the platform limit.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	dir, err := os.MkdirTemp("", "rtctl")
	if err != nil {
		t.Fatalf("Failed to create socket directory: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	return &TestEnv{T: t, SocketDir: dir}
}

// Address maps pid to its socket inside the environment.
func (e *TestEnv) Address(pid int) string {
	return endpoint.SocketAddress(e.SocketDir, pid)
}

// Candidates lists the pids with a socket in the environment.
func (e *TestEnv) Candidates(ctx context.Context) ([]int, error) {
	return endpoint.CandidatesIn(e.SocketDir)
}

// AddRuntime starts a fake runtime answering as meta.
func (e *TestEnv) AddRuntime(meta control.RuntimeMetadata) *FakeRuntime {
	e.T.Helper()

	fake := NewFakeRuntime(meta)
	e.Serve(meta.PID, fake)
	return fake
}

// Serve exposes backend on pid's control endpoint until the test ends.
func (e *TestEnv) Serve(pid int, backend controlapi.Backend) *controlapi.Server {
	e.T.Helper()

	server := controlapi.New(backend)
	if err := server.Start(e.Address(pid)); err != nil {
		e.T.Fatalf("Failed to start control server for pid %d: %v", pid, err)
	}
	e.T.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Close(ctx)
	})
	return server
}

// AddStaleSocket leaves a socket file for pid that nothing listens on.
func (e *TestEnv) AddStaleSocket(pid int) {
	e.T.Helper()

	if err := os.WriteFile(e.Address(pid), nil, 0600); err != nil {
		e.T.Fatalf("Failed to write stale socket: %v", err)
	}
}

// Client returns a control client bound to the environment.
func (e *TestEnv) Client(opts ...control.Option) *control.Client {
	opts = append([]control.Option{control.WithAddressFunc(e.Address)}, opts...)
	c := control.New(opts...)
	e.T.Cleanup(func() { _ = c.Close() })
	return c
}

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/discovery"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
)

// EnvIntegrationTests enables the harness.
const EnvIntegrationTests = "RTCTL_INTEGRATION_TESTS"

// TestHarness provides utilities for integration testing with real runtimes.
type TestHarness struct {
	t         *testing.T
	binary    string
	socketDir string
	stateDir  string
	client    *control.Client
	discovery *discovery.Service

	mu      sync.Mutex
	tracked []int       // Track started runtimes for cleanup
	cmds    []*exec.Cmd // Reaped in Cleanup so no output outlives the test
}

var (
	buildOnce   sync.Once
	buildBinary string
	buildErr    error
)

// NewHarness creates a new test harness.
// It will skip the test if RTCTL_INTEGRATION_TESTS is not set.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvIntegrationTests) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvIntegrationTests)
	}

	binary, err := rtctlBinary()
	if err != nil {
		t.Skipf("failed to build rtctl: %v", err)
	}

	// Socket paths have a short length limit; stay out of t.TempDir().
	socketDir, err := os.MkdirTemp("", "rtctl-it")
	if err != nil {
		t.Fatalf("Failed to create socket directory: %v", err)
	}
	stateDir := t.TempDir()

	t.Setenv(config.EnvSocketDir, socketDir)
	t.Setenv(config.EnvStateDir, stateDir)

	h := &TestHarness{
		t:         t,
		binary:    binary,
		socketDir: socketDir,
		stateDir:  stateDir,
	}
	h.client = control.New(control.WithAddressFunc(h.Address))
	h.discovery = discovery.New(h.client, discovery.WithCandidateLister(func(ctx context.Context) ([]int, error) {
		return endpoint.CandidatesIn(socketDir)
	}))

	t.Cleanup(func() {
		h.Cleanup()
		_ = os.RemoveAll(socketDir)
	})

	return h
}

// rtctlBinary builds the rtctl binary once per test process.
func rtctlBinary() (string, error) {
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "rtctl-bin")
		if err != nil {
			buildErr = err
			return
		}
		buildBinary = filepath.Join(dir, "rtctl")
		out, err := exec.Command("go", "build", "-o", buildBinary, "github.com/firefly-engineering/rtctl").CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("%w: %s", err, out)
		}
	})
	return buildBinary, buildErr
}

// Address maps pid to its socket inside the harness.
func (h *TestHarness) Address(pid int) string {
	return endpoint.AddressIn(h.socketDir, pid)
}

// Client returns a control client bound to the harness socket directory.
func (h *TestHarness) Client() *control.Client {
	return h.client
}

// Discovery returns a discovery service bound to the harness socket directory.
func (h *TestHarness) Discovery() *discovery.Service {
	return h.discovery
}

// StateDir returns the directory rtctl keeps its audit log in.
func (h *TestHarness) StateDir() string {
	return h.stateDir
}

// Binary returns the path of the built rtctl binary.
func (h *TestHarness) Binary() string {
	return h.binary
}

// WriteProject creates a runtime project named name: a static entrypoint
// service "web" and an autoloaded service "api".
func WriteProject(t *testing.T, name string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), name)
	files := map[string]string{
		"web/index.html":    "<h1>web</h1>\n",
		"services/api/ping": "pong\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}

	cfg := map[string]any{
		"entrypoint": "web",
		"services":   []map[string]string{{"id": "web", "path": "web"}},
		"autoload":   map[string]string{"path": "services"},
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "platformatic.json"), data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return dir
}

// StartRuntime runs "rtctl start dir" and tracks it for cleanup.
func (h *TestHarness) StartRuntime(dir string, args ...string) *exec.Cmd {
	h.t.Helper()

	cmd := exec.Command(h.binary, append([]string{"start", dir}, args...)...)
	cmd.Stdout = testWriter{h.t}
	cmd.Stderr = testWriter{h.t}
	if err := cmd.Start(); err != nil {
		h.t.Fatalf("Failed to start runtime: %v", err)
	}
	h.TrackPID(cmd.Process.Pid)

	h.mu.Lock()
	h.cmds = append(h.cmds, cmd)
	h.mu.Unlock()
	return cmd
}

// TrackPID tracks a runtime for cleanup.
func (h *TestHarness) TrackPID(pid int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracked = append(h.tracked, pid)
}

// WaitForRuntime waits for pid's control endpoint to answer.
func (h *TestHarness) WaitForRuntime(pid int, timeout time.Duration) control.RuntimeMetadata {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		meta, err := h.client.Metadata(ctx, pid)
		if err == nil {
			return meta
		}
		select {
		case <-ctx.Done():
			h.t.Fatalf("runtime %d not ready after %v: %v", pid, timeout, err)
		case <-ticker.C:
		}
	}
}

// WaitForExit waits for cmd to exit and returns its error.
func WaitForExit(t *testing.T, cmd *exec.Cmd, timeout time.Duration) error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		t.Fatalf("process %d did not exit within %v", cmd.Process.Pid, timeout)
		return nil
	}
}

// Cleanup terminates every tracked runtime and any runtime still
// answering in the socket directory.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.mu.Lock()
	pids := append([]int(nil), h.tracked...)
	cmds := append([]*exec.Cmd(nil), h.cmds...)
	h.mu.Unlock()

	if runtimes, err := h.discovery.ListRuntimes(ctx); err == nil {
		for _, rt := range runtimes {
			pids = append(pids, rt.PID)
		}
	}

	for _, pid := range pids {
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
			h.t.Logf("Warning: failed to terminate runtime %d: %v", pid, err)
		}
	}

	for _, cmd := range cmds {
		reap(cmd, 5*time.Second)
	}

	_ = h.client.Close()
}

// reap waits for cmd, killing it after timeout. A cmd already waited on
// returns at once.
func reap(cmd *exec.Cmd, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-done
	}
}

// testWriter forwards child output to the test log.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

package host

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/supervisor"
	"github.com/firefly-engineering/rtctl/internal/testutil"
)

func TestUnit_ServesControlAPI(t *testing.T) {
	env := testutil.NewTestEnv(t)
	client := env.Client()
	pid := os.Getpid()

	started := make(chan *Host, 1)
	unit := Unit(WithAddress(env.Address(pid)), WithOnStart(func(h *Host) { started <- h }))
	s := supervisor.New(writeProject(t), supervisor.GoroutineFactory(unit))

	result := make(chan error, 1)
	go func() { result <- s.Run(context.Background()) }()

	var h *Host
	select {
	case h = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("unit did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	meta, err := client.Metadata(ctx, pid)
	if err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if meta.PID != pid {
		t.Errorf("PID = %d, want %d", meta.PID, pid)
	}

	services, err := client.Services(ctx, pid)
	if err != nil {
		t.Fatalf("Services() error: %v", err)
	}
	if services.Entrypoint != "web" {
		t.Errorf("Entrypoint = %q, want web", services.Entrypoint)
	}

	resp, err := client.Proxy(ctx, pid, "web", control.ProxyRequest{Method: http.MethodGet, URL: "/index.html"})
	if err != nil {
		t.Fatalf("Proxy() error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "hello" {
		t.Errorf("proxied body = %q, want hello", body)
	}

	stream, err := client.StreamLogs(ctx, pid, control.LogFilter{Level: "warn"})
	if err != nil {
		t.Fatalf("StreamLogs() error: %v", err)
	}
	h.Log(LevelInfo, "runtime", "quiet")
	h.Log(LevelWarn, "runtime", "loud")

	record, err := stream.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if !bytes.Contains(record, []byte("loud")) {
		t.Errorf("record = %s, want the warn record", record)
	}
	_ = stream.Close()

	if err := client.Stop(ctx, pid); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("unit did not exit after stop")
	}
	if s.State() != supervisor.StateStopped {
		t.Errorf("State() = %v, want stopped", s.State())
	}
}

func TestUnit_InvalidConfig(t *testing.T) {
	cfg := writeProject(t)
	cfg.Autoload.Path = "missing"

	s := supervisor.New(cfg, supervisor.GoroutineFactory(Unit(WithAddress(testutil.NewTestEnv(t).Address(1)))))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when services cannot be resolved")
	}
	if s.State() != supervisor.StateCrashed {
		t.Errorf("State() = %v, want crashed", s.State())
	}
}

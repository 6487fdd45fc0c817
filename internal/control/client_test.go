package control_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/system"
	"github.com/firefly-engineering/rtctl/internal/testutil"
)

func TestClient_Metadata(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddRuntime(control.RuntimeMetadata{PID: 123})
	client := env.Client()

	meta, err := client.Metadata(context.Background(), 123)
	if err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if !reflect.DeepEqual(meta, control.RuntimeMetadata{PID: 123}) {
		t.Errorf("Metadata() = %+v, want {PID:123}", meta)
	}
}

func TestClient_ReadFailures(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(123, "shop"))
	for _, op := range []errors.Op{errors.OpMetadata, errors.OpServices, errors.OpServiceConfig, errors.OpConfig, errors.OpEnv} {
		fake.Fail(op, "boom")
	}
	client := env.Client()
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		wantCode int
	}{
		{"metadata", func() error { _, err := client.Metadata(ctx, 123); return err }, errors.ExitMetadataFailed},
		{"services", func() error { _, err := client.Services(ctx, 123); return err }, errors.ExitServicesFailed},
		{"service config", func() error { _, err := client.ServiceConfig(ctx, 123, "orders"); return err }, errors.ExitServiceConfigFailed},
		{"config", func() error { _, err := client.Config(ctx, 123); return err }, errors.ExitRuntimeConfigFailed},
		{"env", func() error { _, err := client.Env(ctx, 123); return err }, errors.ExitEnvFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %d", err, tt.wantCode)
			}
			var ctlErr *errors.CtlError
			if !errors.As(err, &ctlErr) || ctlErr.Detail != "boom" {
				t.Errorf("error detail should be the response body, got %v", err)
			}
		})
	}
}

func TestClient_ReadOperations(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(200, "shop"))
	fake.SetServiceConfig("orders", map[string]any{"port": float64(3001)})
	fake.SetEnv(map[string]string{"PORT": "3042"})
	client := env.Client()
	ctx := context.Background()

	services, err := client.Services(ctx, 200)
	if err != nil {
		t.Fatalf("Services() error: %v", err)
	}
	if len(services.Services) != 2 || services.Services[0].ID != "gateway" || !services.Services[0].Entrypoint {
		t.Errorf("Services() = %+v", services)
	}

	cfg, err := client.ServiceConfig(ctx, 200, "orders")
	if err != nil {
		t.Fatalf("ServiceConfig() error: %v", err)
	}
	if cfg["port"] != float64(3001) {
		t.Errorf("ServiceConfig()[port] = %v, want 3001", cfg["port"])
	}

	runtimeCfg, err := client.Config(ctx, 200)
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	if runtimeCfg["entrypoint"] != "gateway" {
		t.Errorf("Config()[entrypoint] = %v, want gateway", runtimeCfg["entrypoint"])
	}

	envVars, err := client.Env(ctx, 200)
	if err != nil {
		t.Fatalf("Env() error: %v", err)
	}
	if envVars["PORT"] != "3042" {
		t.Errorf("Env()[PORT] = %q, want 3042", envVars["PORT"])
	}

	// Every call against one pid shares one transport.
	if got := client.OpenConnections(); got != 1 {
		t.Errorf("OpenConnections() = %d, want 1", got)
	}
}

func TestClient_Lifecycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(300, "shop"))
	client := env.Client()
	ctx := context.Background()

	if err := client.Reload(ctx, 300); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if err := client.Stop(ctx, 300); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if fake.Reloads() != 1 || fake.Stops() != 1 {
		t.Errorf("reloads = %d, stops = %d, want 1 and 1", fake.Reloads(), fake.Stops())
	}

	fake.Fail(errors.OpReload, "reload refused")
	fake.Fail(errors.OpStop, "stop refused")

	if err := client.Reload(ctx, 300); !errors.HasCode(err, errors.ExitReloadFailed) || !strings.Contains(err.Error(), "reload refused") {
		t.Errorf("Reload() error = %v, want FailedToReloadRuntime", err)
	}
	if err := client.Stop(ctx, 300); !errors.HasCode(err, errors.ExitStopFailed) || !strings.Contains(err.Error(), "stop refused") {
		t.Errorf("Stop() error = %v, want FailedToStopRuntime", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddStaleSocket(404)
	client := env.Client()

	_, err := client.Metadata(context.Background(), 404)
	if !errors.HasCode(err, errors.ExitMetadataFailed) {
		t.Fatalf("Metadata() error = %v, want FailedToGetRuntimeMetadata", err)
	}
	if !control.IsUnreachable(err) {
		t.Errorf("error should be marked unreachable: %v", err)
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(500, "shop"))
	fake.SetLogs([]string{"first"}, true)
	client := env.Client()
	ctx := context.Background()

	if _, err := client.Metadata(ctx, 500); err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	stream, err := client.StreamLogs(ctx, 500, control.LogFilter{})
	if err != nil {
		t.Fatalf("StreamLogs() error: %v", err)
	}
	if client.OpenConnections() != 1 || client.OpenSessions() != 1 {
		t.Fatalf("before Close: connections = %d, sessions = %d", client.OpenConnections(), client.OpenSessions())
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	if client.OpenConnections() != 0 || client.OpenSessions() != 0 {
		t.Errorf("after Close: connections = %d, sessions = %d", client.OpenConnections(), client.OpenSessions())
	}

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("log stream should end when the client closes")
	}

	if _, err := client.Metadata(ctx, 500); !errors.HasCode(err, errors.ExitClientClosed) {
		t.Errorf("Metadata() after Close = %v, want ClientClosed", err)
	}
	if _, err := client.StreamLogs(ctx, 500, control.LogFilter{}); !errors.HasCode(err, errors.ExitClientClosed) {
		t.Errorf("StreamLogs() after Close = %v, want ClientClosed", err)
	}
}

func TestClient_Proxy(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(600, "shop"))
	fake.Handle("orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-Query", r.URL.RawQuery)
		w.Header().Set("X-Seen-Token", r.Header.Get("X-Token"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(append([]byte(r.Method+" "), body...))
	}))
	client := env.Client()

	resp, err := client.Proxy(context.Background(), 600, "orders", control.ProxyRequest{
		Method: http.MethodPost,
		URL:    "/orders/7?expand=items",
		Header: http.Header{"X-Token": []string{"secret"}},
		Body:   strings.NewReader("payload"),
	})
	if err != nil {
		t.Fatalf("Proxy() error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
	if got := resp.Header.Get("X-Seen-Path"); got != "/orders/7" {
		t.Errorf("service saw path %q, want /orders/7", got)
	}
	if got := resp.Header.Get("X-Seen-Query"); got != "expand=items" {
		t.Errorf("service saw query %q, want expand=items", got)
	}
	if got := resp.Header.Get("X-Seen-Token"); got != "secret" {
		t.Errorf("service saw token %q, want secret", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "POST payload" {
		t.Errorf("body = %q, want %q", body, "POST payload")
	}
}

func TestClient_ProxyIsTransparent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(601, "shop"))
	fake.Handle("orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.EscapedPath())
		w.Header().Set("X-Seen-Query", r.URL.RawQuery)
		w.Header().Set("X-Up", "1")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("teapot"))
	}))
	client := env.Client()

	tests := []struct {
		name      string
		req       control.ProxyRequest
		wantPath  string
		wantQuery string
	}{
		{
			name:      "raw query and escaped path",
			req:       control.ProxyRequest{Method: http.MethodPatch, URL: "/a%2Fb/c?z=1&flag&a=2"},
			wantPath:  "/a%2Fb/c",
			wantQuery: "z=1&flag&a=2",
		},
		{
			name: "extra query appended",
			req: control.ProxyRequest{
				URL:   "/items?z=1&flag",
				Query: url.Values{"page": []string{"2"}},
			},
			wantPath:  "/items",
			wantQuery: "z=1&flag&page=2",
		},
		{
			name:      "extra query only",
			req:       control.ProxyRequest{URL: "/items", Query: url.Values{"page": []string{"2"}}},
			wantPath:  "/items",
			wantQuery: "page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Proxy(context.Background(), 601, "orders", tt.req)
			if err != nil {
				t.Fatalf("Proxy() error: %v", err)
			}
			defer resp.Body.Close()

			if got := resp.Header.Get("X-Seen-Path"); got != tt.wantPath {
				t.Errorf("service saw path %q, want %q", got, tt.wantPath)
			}
			if got := resp.Header.Get("X-Seen-Query"); got != tt.wantQuery {
				t.Errorf("service saw query %q, want %q", got, tt.wantQuery)
			}
			if resp.StatusCode != http.StatusTeapot || resp.Header.Get("X-Up") != "1" {
				t.Errorf("response = %d %v", resp.StatusCode, resp.Header)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "teapot" {
				t.Errorf("body = %q, want teapot", body)
			}
		})
	}
}

func TestClient_UnreachableDropsTransport(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddStaleSocket(405)
	env.AddRuntime(testutil.Metadata(406, "shop"))
	client := env.Client()
	ctx := context.Background()

	if _, err := client.Metadata(ctx, 406); err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if _, err := client.Metadata(ctx, 405); !control.IsUnreachable(err) {
		t.Fatalf("Metadata() error = %v, want unreachable", err)
	}
	if got := client.OpenConnections(); got != 1 {
		t.Errorf("OpenConnections() = %d, want 1 (only the live pid)", got)
	}

	if _, err := client.Metadata(ctx, 406); err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if got := client.OpenConnections(); got != 1 {
		t.Errorf("OpenConnections() = %d, want 1", got)
	}
}

func TestClient_StreamLogs(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(700, "shop"))
	fake.SetLogs([]string{"A", "B"}, false)
	client := env.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := client.StreamLogs(ctx, 700, control.LogFilter{Level: "warn", ServiceID: "orders"})
	if err != nil {
		t.Fatalf("StreamLogs() error: %v", err)
	}

	var got []string
	for {
		chunk, err := stream.Recv(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
		got = append(got, string(chunk))
	}
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("records = %v, want [A B]", got)
	}

	filters := fake.LogFilters()
	if len(filters) != 1 || filters[0].Level != "warn" || filters[0].ServiceID != "orders" || filters[0].Pretty {
		t.Errorf("runtime saw filters %+v", filters)
	}

	<-stream.Done()
	deadline := time.Now().Add(5 * time.Second)
	for client.OpenSessions() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := client.OpenSessions(); got != 0 {
		t.Errorf("OpenSessions() = %d after the stream ended, want 0", got)
	}
}

func TestClient_StreamLogsHighWaterMark(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(701, "shop"))
	want := []string{"A", "B", "C", "D", "E"}
	fake.SetLogs(want, false)
	client := env.Client(control.WithLogHighWaterMark(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := client.StreamLogs(ctx, 701, control.LogFilter{})
	if err != nil {
		t.Fatalf("StreamLogs() error: %v", err)
	}

	// Read slowly so the reader has to pause on the full buffer.
	var got []string
	for record, err := range stream.All(ctx) {
		if err != nil {
			t.Fatalf("All() error: %v", err)
		}
		got = append(got, string(record))
		time.Sleep(10 * time.Millisecond)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}
}

func TestClient_StreamLogsFailure(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(701, "shop"))
	fake.Fail(errors.OpLogs, "no logger")
	client := env.Client()

	_, err := client.StreamLogs(context.Background(), 701, control.LogFilter{})
	if !errors.HasCode(err, errors.ExitLogStreamFailed) {
		t.Fatalf("StreamLogs() error = %v, want FailedToStreamRuntimeLogs", err)
	}
	if !strings.Contains(err.Error(), "no logger") {
		t.Errorf("error should carry the runtime's reason: %v", err)
	}
}

func TestClient_Restart(t *testing.T) {
	env := testutil.NewTestEnv(t)
	meta := testutil.Metadata(800, "shop")
	fake := env.AddRuntime(meta)
	starter := system.NewMockStarter(900)
	client := env.Client(control.WithProcessStarter(starter))

	proc, err := client.Restart(context.Background(), 800, control.SpawnOptions{Env: []string{"A=1"}})
	if err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	if proc.PID != 900 {
		t.Errorf("PID = %d, want 900", proc.PID)
	}
	if fake.Stops() != 1 {
		t.Errorf("stops = %d, want 1", fake.Stops())
	}

	specs := starter.Specs()
	if len(specs) != 1 {
		t.Fatalf("spawned %d processes, want 1", len(specs))
	}
	spec := specs[0]
	if spec.Command != meta.Argv[0] || !reflect.DeepEqual(spec.Args, meta.Argv[1:]) {
		t.Errorf("spawned %q %v, want %v", spec.Command, spec.Args, meta.Argv)
	}
	if spec.Dir != meta.Cwd {
		t.Errorf("Dir = %q, want %q", spec.Dir, meta.Cwd)
	}
	if !reflect.DeepEqual(spec.Env, []string{"A=1"}) {
		t.Errorf("Env = %v, want [A=1]", spec.Env)
	}
}

func TestClient_RestartFailures(t *testing.T) {
	t.Run("unreachable runtime", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		env.AddStaleSocket(810)
		starter := system.NewMockStarter(900)
		client := env.Client(control.WithProcessStarter(starter))

		_, err := client.Restart(context.Background(), 810, control.SpawnOptions{})
		if !errors.HasCode(err, errors.ExitRuntimeNotFound) {
			t.Errorf("Restart() error = %v, want RuntimeNotFound", err)
		}
		if len(starter.Specs()) != 0 {
			t.Error("nothing should be spawned")
		}
	})

	t.Run("stop refused", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		fake := env.AddRuntime(testutil.Metadata(811, "shop"))
		fake.Fail(errors.OpStop, "busy")
		starter := system.NewMockStarter(900)
		client := env.Client(control.WithProcessStarter(starter))

		_, err := client.Restart(context.Background(), 811, control.SpawnOptions{})
		if !errors.HasCode(err, errors.ExitStopFailed) {
			t.Errorf("Restart() error = %v, want FailedToStopRuntime", err)
		}
		if len(starter.Specs()) != 0 {
			t.Error("nothing should be spawned when stop fails")
		}
	})

	t.Run("spawn failure", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		env.AddRuntime(testutil.Metadata(812, "shop"))
		starter := system.NewMockStarter(900)
		starter.StartErr = io.ErrUnexpectedEOF
		client := env.Client(control.WithProcessStarter(starter))

		_, err := client.Restart(context.Background(), 812, control.SpawnOptions{})
		if !errors.HasCode(err, errors.ExitSpawnFailed) {
			t.Errorf("Restart() error = %v, want SpawnFailed", err)
		}
	})
}

func TestClient_RestartSerialized(t *testing.T) {
	env := testutil.NewTestEnv(t)
	fake := env.AddRuntime(testutil.Metadata(820, "shop"))

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	fake.OnStop(func() {
		record("stop-begin")
		time.Sleep(50 * time.Millisecond)
		record("stop-end")
	})
	starter := system.NewMockStarter(900)
	starter.OnStart = func(system.ProcessSpec) { record("spawn") }
	client := env.Client(control.WithProcessStarter(starter))

	const callers = 3
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Restart(context.Background(), 820, control.SpawnOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Restart() error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{}
	for i := 0; i < callers; i++ {
		want = append(want, "stop-begin", "stop-end", "spawn")
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestClient_RestartReadinessWait(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddRuntime(testutil.Metadata(830, "shop"))

	starter := system.NewMockStarter(931)
	starter.OnStart = func(spec system.ProcessSpec) {
		// The replacement comes up a little after the spawn.
		go func() {
			time.Sleep(150 * time.Millisecond)
			env.AddRuntime(testutil.Metadata(931, "shop"))
		}()
	}
	client := env.Client(
		control.WithProcessStarter(starter),
		control.WithReadinessWait(5*time.Second),
	)

	proc, err := client.Restart(context.Background(), 830, control.SpawnOptions{})
	if err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	if proc.PID != 931 {
		t.Errorf("PID = %d, want 931", proc.PID)
	}

	t.Run("never ready", func(t *testing.T) {
		env.AddRuntime(testutil.Metadata(840, "shop"))
		starter := system.NewMockStarter(941)
		client := env.Client(
			control.WithProcessStarter(starter),
			control.WithReadinessWait(300*time.Millisecond),
		)

		proc, err := client.Restart(context.Background(), 840, control.SpawnOptions{})
		if !errors.HasCode(err, errors.ExitSpawnFailed) {
			t.Errorf("Restart() error = %v, want a readiness failure", err)
		}
		if proc == nil || proc.PID != 941 {
			t.Errorf("the spawned process should still be returned, got %+v", proc)
		}
	})
}

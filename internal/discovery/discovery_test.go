package discovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/testutil"
)

func newService(t *testing.T, env *testutil.TestEnv) *Service {
	t.Helper()
	return New(env.Client(), WithCandidateLister(env.Candidates))
}

func TestListRuntimes(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddRuntime(testutil.Metadata(300, "billing"))
	env.AddRuntime(testutil.Metadata(100, "shop"))
	env.AddStaleSocket(200)

	runtimes, err := newService(t, env).ListRuntimes(context.Background())
	if err != nil {
		t.Fatalf("ListRuntimes() error: %v", err)
	}

	if len(runtimes) != 2 {
		t.Fatalf("ListRuntimes() returned %d runtimes, want 2: %+v", len(runtimes), runtimes)
	}
	if runtimes[0].PID != 100 || runtimes[1].PID != 300 {
		t.Errorf("pids = [%d %d], want [100 300]", runtimes[0].PID, runtimes[1].PID)
	}
}

func TestListRuntimes_FailingRuntimeIsolated(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddRuntime(testutil.Metadata(100, "shop"))
	broken := env.AddRuntime(testutil.Metadata(101, "broken"))
	broken.Fail(errors.OpMetadata, "boom")

	runtimes, err := newService(t, env).ListRuntimes(context.Background())
	if err != nil {
		t.Fatalf("ListRuntimes() error: %v", err)
	}
	if len(runtimes) != 1 || runtimes[0].PID != 100 {
		t.Errorf("ListRuntimes() = %+v, want only pid 100", runtimes)
	}
}

func TestListRuntimes_NoCandidates(t *testing.T) {
	svc := New(control.New(), WithCandidateLister(func(ctx context.Context) ([]int, error) {
		return nil, nil
	}))

	runtimes, err := svc.ListRuntimes(context.Background())
	if err != nil {
		t.Fatalf("ListRuntimes() error: %v", err)
	}
	if len(runtimes) != 0 {
		t.Errorf("ListRuntimes() = %+v, want none", runtimes)
	}
}

func TestListRuntimes_EnumerationError(t *testing.T) {
	svc := New(control.New(), WithCandidateLister(func(ctx context.Context) ([]int, error) {
		return nil, fmt.Errorf("permission denied")
	}))

	if _, err := svc.ListRuntimes(context.Background()); err == nil {
		t.Error("ListRuntimes() should surface an enumeration failure")
	}
}

// countingFetcher answers for every pid and counts concurrent callers.
type countingFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (f *countingFetcher) Metadata(ctx context.Context, pid int) (control.RuntimeMetadata, error) {
	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-f.release
	f.inFlight.Add(-1)
	return control.RuntimeMetadata{PID: pid}, nil
}

func TestListRuntimes_Concurrent(t *testing.T) {
	fetcher := &countingFetcher{release: make(chan struct{})}
	svc := New(fetcher, WithCandidateLister(func(ctx context.Context) ([]int, error) {
		return []int{3, 1, 2}, nil
	}))

	done := make(chan []control.RuntimeMetadata)
	go func() {
		runtimes, _ := svc.ListRuntimes(context.Background())
		done <- runtimes
	}()

	// All three fetches must be in flight at once before any is released.
	for fetcher.peak.Load() < 3 {
		select {
		case <-done:
			t.Fatal("ListRuntimes() returned before the fetches were released")
		case <-time.After(time.Millisecond):
		}
	}
	close(fetcher.release)

	runtimes := <-done
	if len(runtimes) != 3 || runtimes[0].PID != 1 || runtimes[2].PID != 3 {
		t.Errorf("ListRuntimes() = %+v, want pids 1..3 in order", runtimes)
	}
}

func TestResolveOne(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddRuntime(testutil.Metadata(100, "shop"))
	env.AddRuntime(testutil.Metadata(200, "billing"))
	svc := newService(t, env)
	ctx := context.Background()

	tests := []struct {
		name    string
		sel     Selector
		wantPID int
		wantErr bool
	}{
		{"by pid", ByPid{PID: 200}, 200, false},
		{"by missing pid", ByPid{PID: 999}, 0, true},
		{"by name", ByName{Name: "shop"}, 100, false},
		{"by missing name", ByName{Name: "nope"}, 0, true},
		{"any with two runtimes", Any{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := svc.ResolveOne(ctx, tt.sel)
			if tt.wantErr {
				if !errors.HasCode(err, errors.ExitRuntimeNotFound) {
					t.Errorf("ResolveOne() error = %v, want RuntimeNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveOne() error: %v", err)
			}
			if rt.PID != tt.wantPID {
				t.Errorf("ResolveOne() pid = %d, want %d", rt.PID, tt.wantPID)
			}
		})
	}
}

func TestResolveOne_Any(t *testing.T) {
	env := testutil.NewTestEnv(t)
	svc := newService(t, env)
	ctx := context.Background()

	if _, err := svc.ResolveOne(ctx, Any{}); !errors.HasCode(err, errors.ExitRuntimeNotFound) {
		t.Errorf("ResolveOne(Any) with no runtimes = %v, want RuntimeNotFound", err)
	}

	env.AddRuntime(testutil.Metadata(100, "shop"))
	rt, err := svc.ResolveOne(ctx, Any{})
	if err != nil {
		t.Fatalf("ResolveOne(Any) error: %v", err)
	}
	if rt.PID != 100 {
		t.Errorf("ResolveOne(Any) pid = %d, want 100", rt.PID)
	}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		pid  int
		name string
		want Selector
	}{
		{42, "", ByPid{PID: 42}},
		{42, "shop", ByPid{PID: 42}},
		{0, "shop", ByName{Name: "shop"}},
		{0, "", Any{}},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := ParseSelector(tt.pid, tt.name); got != tt.want {
				t.Errorf("ParseSelector(%d, %q) = %v, want %v", tt.pid, tt.name, got, tt.want)
			}
		})
	}
}

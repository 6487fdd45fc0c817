package health

import (
	"context"
	"testing"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/testutil"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"seconds", 30 * time.Second, "30s"},
		{"one minute", 1 * time.Minute, "1m"},
		{"minutes", 45 * time.Minute, "45m"},
		{"one hour", 1 * time.Hour, "1h 0m"},
		{"hours and minutes", 2*time.Hour + 30*time.Minute, "2h 30m"},
		{"one day", 24 * time.Hour, "1d 0h"},
		{"days and hours", 3*24*time.Hour + 5*time.Hour, "3d 5h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatDuration(tt.duration)
			if got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	if got := FormatUptime(0); got != "unknown" {
		t.Errorf("FormatUptime(0) = %q, want unknown", got)
	}
	if got := FormatUptime(90.5); got != "1m" {
		t.Errorf("FormatUptime(90.5) = %q, want 1m", got)
	}
}

func TestCheck(t *testing.T) {
	env := testutil.NewTestEnv(t)
	client := env.Client()
	ctx := context.Background()

	healthy := env.AddRuntime(testutil.Metadata(100, "shop"))
	healthy.SetServices(control.Services{Services: []control.ServiceDescriptor{
		{ID: "api", Status: "started"},
	}})

	degraded := env.AddRuntime(testutil.Metadata(101, "billing"))
	degraded.SetServices(control.Services{Services: []control.ServiceDescriptor{
		{ID: "api", Status: "started"},
		{ID: "jobs", Status: "stopped"},
	}})

	failing := env.AddRuntime(testutil.Metadata(102, "broken"))
	failing.Fail(errors.OpServices, "boom")

	env.AddStaleSocket(103)

	tests := []struct {
		name string
		pid  int
		want Status
	}{
		{"healthy", 100, StatusHealthy},
		{"degraded", 101, StatusDegraded},
		{"error", 102, StatusError},
		{"unreachable", 103, StatusUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSummary(ctx, client, tt.pid); got != tt.want {
				t.Errorf("GetSummary() = %q, want %q", got, tt.want)
			}
		})
	}

	result := Check(ctx, client, 101)
	if result.Services != 2 || len(result.NotStarted) != 1 || result.NotStarted[0] != "jobs" {
		t.Errorf("Check() = %+v", result)
	}
}

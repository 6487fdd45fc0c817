package health

import (
	"context"
	"fmt"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
)

// Status represents the health status of a runtime
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusDegraded    Status = "degraded"
	StatusUnreachable Status = "unreachable"
	StatusError       Status = "error"

	// startedStatus is what a running service reports.
	startedStatus = "started"
)

// Prober is the subset of the control client health checks need.
type Prober interface {
	Metadata(ctx context.Context, pid int) (control.RuntimeMetadata, error)
	Services(ctx context.Context, pid int) (control.Services, error)
}

// CheckResult contains the results of health checks
type CheckResult struct {
	Reachable  bool
	Uptime     string
	Services   int
	NotStarted []string
	Err        error
}

// Status derives the summary status from the result.
func (r *CheckResult) Status() Status {
	switch {
	case !r.Reachable:
		return StatusUnreachable
	case r.Err != nil:
		return StatusError
	case len(r.NotStarted) > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// FormatUptime renders uptime in seconds as a short human-readable string.
func FormatUptime(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	return formatDuration(time.Duration(seconds * float64(time.Second)))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// Check queries metadata and services of the runtime at pid.
func Check(ctx context.Context, p Prober, pid int) *CheckResult {
	result := &CheckResult{}

	meta, err := p.Metadata(ctx, pid)
	if err != nil {
		result.Reachable = !control.IsUnreachable(err)
		result.Err = err
		return result
	}
	result.Reachable = true
	result.Uptime = FormatUptime(meta.UptimeSeconds)

	services, err := p.Services(ctx, pid)
	if err != nil {
		result.Err = err
		return result
	}
	result.Services = len(services.Services)
	for _, svc := range services.Services {
		if svc.Status != "" && svc.Status != startedStatus {
			result.NotStarted = append(result.NotStarted, svc.ID)
		}
	}
	return result
}

// GetSummary returns a summary health status.
func GetSummary(ctx context.Context, p Prober, pid int) Status {
	return Check(ctx, p, pid).Status()
}

// Package monitor periodically discovers runtimes and checks their health.
package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/firefly-engineering/rtctl/internal/audit"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/health"
	"github.com/firefly-engineering/rtctl/internal/logging"
)

// Lister lists the reachable runtimes on the host.
type Lister interface {
	ListRuntimes(ctx context.Context) ([]control.RuntimeMetadata, error)
}

// CheckResult holds the result of a single runtime health check.
type CheckResult struct {
	Runtime control.RuntimeMetadata
	Status  health.Status
	Health  *health.CheckResult
}

// Snapshot is the outcome of one monitoring pass.
type Snapshot struct {
	Time     time.Time
	Runtimes []CheckResult

	// Appeared and Gone list pids that changed since the previous pass.
	Appeared []int
	Gone     []int
}

// Monitor periodically checks the health of all runtimes.
type Monitor struct {
	interval   time.Duration
	lister     Lister
	prober     health.Prober
	auditLog   *audit.Logger
	onSnapshot func(Snapshot)

	known map[int]string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAuditLogger records runtimes appearing and disappearing.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(m *Monitor) {
		m.auditLog = logger
	}
}

// WithSnapshotHandler sets the function receiving every snapshot.
func WithSnapshotHandler(fn func(Snapshot)) Option {
	return func(m *Monitor) {
		m.onSnapshot = fn
	}
}

// New creates a new Monitor.
func New(interval time.Duration, lister Lister, prober health.Prober, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		lister:   lister,
		prober:   prober,
		known:    make(map[int]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting runtime monitor", "interval", m.interval)

	// Run an immediate check, then loop on interval.
	m.checkAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("runtime monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// checkAll performs one pass over every discovered runtime.
func (m *Monitor) checkAll(ctx context.Context) Snapshot {
	snap := Snapshot{Time: time.Now()}

	runtimes, err := m.lister.ListRuntimes(ctx)
	if err != nil {
		logging.Warn("monitor failed to list runtimes", "error", err)
		return snap
	}

	seen := make(map[int]bool, len(runtimes))
	for _, rt := range runtimes {
		if ctx.Err() != nil {
			break
		}
		seen[rt.PID] = true

		result := health.Check(ctx, m.prober, rt.PID)
		snap.Runtimes = append(snap.Runtimes, CheckResult{
			Runtime: rt,
			Status:  result.Status(),
			Health:  result,
		})

		if _, ok := m.known[rt.PID]; !ok {
			m.known[rt.PID] = rt.PackageName
			snap.Appeared = append(snap.Appeared, rt.PID)
			m.record(audit.EventStart, rt.PID, rt.PackageName, "discovered")
		}
	}

	if ctx.Err() == nil {
		for pid, name := range m.known {
			if seen[pid] {
				continue
			}
			delete(m.known, pid)
			snap.Gone = append(snap.Gone, pid)
			m.record(audit.EventExit, pid, name, "no longer reachable")
		}
		sort.Ints(snap.Gone)
	}

	if m.onSnapshot != nil {
		m.onSnapshot(snap)
	}
	return snap
}

func (m *Monitor) record(eventType audit.EventType, pid int, name, details string) {
	if m.auditLog == nil {
		return
	}
	if err := m.auditLog.LogEvent(eventType, pid, name, details); err != nil {
		logging.Debug("failed to write audit event", "error", err)
	}
}

package system

import (
	"context"
	"sync"
)

// MockStarter implements ProcessStarter for testing. It records every spec
// and hands out increasing fake pids.
type MockStarter struct {
	mu      sync.Mutex
	specs   []ProcessSpec
	nextPID int

	// StartErr, when set, is returned by every Start call.
	StartErr error

	// OnStart runs before Start returns, while the call is still in flight.
	OnStart func(spec ProcessSpec)
}

// NewMockStarter creates a MockStarter whose first pid is firstPID.
func NewMockStarter(firstPID int) *MockStarter {
	return &MockStarter{nextPID: firstPID}
}

func (m *MockStarter) Start(ctx context.Context, spec ProcessSpec) (*Process, error) {
	if m.OnStart != nil {
		m.OnStart(spec)
	}
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs = append(m.specs, spec)
	pid := m.nextPID
	m.nextPID++
	return &Process{PID: pid}, nil
}

// Specs returns a copy of every recorded spec in call order.
func (m *MockStarter) Specs() []ProcessSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProcessSpec, len(m.specs))
	copy(out, m.specs)
	return out
}

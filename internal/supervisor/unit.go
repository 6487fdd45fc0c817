package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/firefly-engineering/rtctl/internal/config"
)

// MessageKind identifies a message relayed to the execution unit.
type MessageKind int

const (
	// MessageShutdown asks the unit to shut down gracefully.
	MessageShutdown MessageKind = iota
	// MessageDiagnostics relays the user diagnostics signal.
	MessageDiagnostics
)

func (k MessageKind) String() string {
	switch k {
	case MessageShutdown:
		return "shutdown"
	case MessageDiagnostics:
		return "diagnostics"
	default:
		return "unknown"
	}
}

// Message is sent from the supervisor to the execution unit.
type Message struct {
	Kind MessageKind

	// Reason names what triggered the message, e.g. the signal.
	Reason string
}

// EventKind identifies an event emitted by the execution unit.
type EventKind int

const (
	// EventReady is the readiness handshake.
	EventReady EventKind = iota
)

// Event is sent from the execution unit to the supervisor.
type Event struct {
	Kind EventKind
}

// LoaderHook is handed to units started with hot reload. Changes carries the
// paths of watched files that changed, other than the runtime config.
type LoaderHook struct {
	Changes <-chan string
}

// UnitOptions configure a new execution unit.
type UnitOptions struct {
	Config *config.RuntimeConfig

	// LoaderHook is nil unless hot reload is enabled.
	LoaderHook *LoaderHook
}

// Unit is a running execution unit. It communicates with the supervisor
// only through messages and events.
type Unit interface {
	Send(msg Message)
	Events() <-chan Event
	Exited() <-chan struct{}

	// Err returns the exit error once Exited is closed.
	Err() error
}

// UnitFactory starts an execution unit.
type UnitFactory func(ctx context.Context, opts UnitOptions) (Unit, error)

// UnitFunc is the body of a GoroutineUnit. It must call ready once it can
// serve, consume inbox, and return when it decides to exit.
type UnitFunc func(ctx context.Context, opts UnitOptions, inbox <-chan Message, ready func()) error

// GoroutineUnit runs a UnitFunc on its own goroutine.
type GoroutineUnit struct {
	inbox  chan Message
	events chan Event
	exited chan struct{}
	err    error

	readyOnce sync.Once
}

// StartGoroutineUnit starts fn. A panic in fn is reported as an exit error.
func StartGoroutineUnit(ctx context.Context, opts UnitOptions, fn UnitFunc) *GoroutineUnit {
	u := &GoroutineUnit{
		inbox:  make(chan Message, 8),
		events: make(chan Event, 1),
		exited: make(chan struct{}),
	}

	ready := func() {
		u.readyOnce.Do(func() {
			u.events <- Event{Kind: EventReady}
		})
	}

	go func() {
		defer close(u.exited)
		defer func() {
			if r := recover(); r != nil {
				u.err = fmt.Errorf("execution unit panicked: %v", r)
			}
		}()
		u.err = fn(ctx, opts, u.inbox, ready)
	}()

	return u
}

// GoroutineFactory returns a UnitFactory running fn as a GoroutineUnit.
func GoroutineFactory(fn UnitFunc) UnitFactory {
	return func(ctx context.Context, opts UnitOptions) (Unit, error) {
		return StartGoroutineUnit(ctx, opts, fn), nil
	}
}

// Send delivers msg unless the unit has already exited.
func (u *GoroutineUnit) Send(msg Message) {
	select {
	case u.inbox <- msg:
	case <-u.exited:
	}
}

func (u *GoroutineUnit) Events() <-chan Event {
	return u.events
}

func (u *GoroutineUnit) Exited() <-chan struct{} {
	return u.exited
}

func (u *GoroutineUnit) Err() error {
	<-u.exited
	return u.err
}

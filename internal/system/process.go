package system

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ProcessSpec describes a process to start.
type ProcessSpec struct {
	Command string
	Args    []string
	Dir     string

	// Env replaces the inherited environment when non-nil.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Detach places the child in its own session/process group so it
	// outlives the caller's terminal.
	Detach bool
}

// Process is a handle to a started process. The starter reaps the child in
// the background; Wait blocks until that happens.
type Process struct {
	PID int

	done chan struct{}
	err  error
	proc *os.Process
}

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	if p.done == nil {
		return nil
	}
	<-p.done
	return p.err
}

// Exited returns a channel closed when the process has exited.
func (p *Process) Exited() <-chan struct{} {
	if p.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.done
}

// Signal sends sig to the process.
func (p *Process) Signal(sig os.Signal) error {
	if p.proc == nil {
		return fmt.Errorf("process %d has no OS handle", p.PID)
	}
	return p.proc.Signal(sig)
}

// ProcessStarter starts processes.
type ProcessStarter interface {
	Start(ctx context.Context, spec ProcessSpec) (*Process, error)
}

// osStarter implements ProcessStarter with os/exec.
type osStarter struct{}

func (s *osStarter) Start(ctx context.Context, spec ProcessSpec) (*Process, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	// The child must not die with ctx: restart hands it off and returns.
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if spec.Detach {
		cmd.SysProcAttr = detachedProcAttr()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &Process{
		PID:  cmd.Process.Pid,
		done: make(chan struct{}),
		proc: cmd.Process,
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

var (
	defaultMu      sync.RWMutex
	defaultStarter ProcessStarter = &osStarter{}
)

// DefaultStarter returns the default ProcessStarter.
func DefaultStarter() ProcessStarter {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultStarter
}

// SetDefaultStarter sets the default ProcessStarter (useful for testing).
func SetDefaultStarter(s ProcessStarter) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStarter = s
}

// ResetDefaults restores the os/exec implementation.
func ResetDefaults() {
	SetDefaultStarter(&osStarter{})
}

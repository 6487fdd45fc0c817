package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/system"
)

// restartLock returns the lock serializing restarts of pid.
func (c *Client) restartLock(pid int) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.restartLocks[pid]
	if !ok {
		lock = &sync.Mutex{}
		c.restartLocks[pid] = lock
	}
	return lock
}

// Restart stops the runtime and launches a replacement with the same
// command, arguments and working directory.
//
// The stop is always awaited before the spawn, and restarts of the same pid
// never overlap. Unless WithReadinessWait is set, the replacement is not
// checked for reachability.
func (c *Client) Restart(ctx context.Context, pid int, opts SpawnOptions) (*system.Process, error) {
	lock := c.restartLock(pid)
	lock.Lock()
	defer lock.Unlock()

	meta, err := c.Metadata(ctx, pid)
	if err != nil {
		if IsUnreachable(err) {
			notFound := errors.RuntimeNotFound(fmt.Sprintf("pid %d", pid))
			notFound.Cause = err
			return nil, notFound
		}
		return nil, err
	}
	if meta.Command() == "" {
		return nil, errors.ValidationError(fmt.Sprintf("runtime %d reported no launch command", pid))
	}

	if err := c.Stop(ctx, pid); err != nil {
		return nil, err
	}
	logging.Debug("runtime stopped for restart", "pid", pid)

	spec := system.ProcessSpec{
		Command: meta.Command(),
		Args:    meta.Args(),
		Dir:     meta.Cwd,
		Env:     opts.Env,
		Stdin:   opts.Stdin,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		Detach:  opts.Detach,
	}
	if opts.Dir != "" {
		spec.Dir = opts.Dir
	}

	proc, err := c.starter.Start(ctx, spec)
	if err != nil {
		return nil, errors.SpawnFailed(spec.Command, err)
	}
	logging.Debug("replacement runtime spawned", "oldPid", pid, "pid", proc.PID)

	if c.readinessWait > 0 {
		if err := c.awaitReady(ctx, proc.PID); err != nil {
			return proc, err
		}
	}
	return proc, nil
}

// awaitReady polls pid's metadata until it answers or the wait runs out.
func (c *Client) awaitReady(ctx context.Context, pid int) error {
	ctx, cancel := context.WithTimeout(ctx, c.readinessWait)
	defer cancel()

	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	for {
		_, err := c.Metadata(ctx, pid)
		if err == nil {
			return nil
		}
		if errors.HasCode(err, errors.ExitClientClosed) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.RuntimeNotReady(pid, err)
		case <-ticker.C:
		}
	}
}

//go:build !windows

package endpoint

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// dialTimeout bounds only the connect phase of Dial.
const dialTimeout = 5 * time.Second

// Address returns the control endpoint address for pid on this platform.
func Address(pid int) string {
	return SocketAddress(SocketDir(), pid)
}

// DefaultDir returns the directory enumerated for control sockets.
func DefaultDir() string {
	return SocketDir()
}

// AddressIn returns the control socket for pid inside dir.
func AddressIn(dir string, pid int) string {
	return SocketAddress(dir, pid)
}

// Dial connects to a control endpoint.
func Dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	return dialer.DialContext(ctx, "unix", address)
}

// Listen creates a control endpoint at address, creating the socket
// directory and removing a stale socket left by a dead process.
func Listen(address string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(address), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return net.Listen("unix", address)
}

// Candidates lists the pids of every socket in the well-known directory.
func Candidates(ctx context.Context) ([]int, error) {
	return CandidatesIn(SocketDir())
}

// CandidatesIn lists the pids of every "<pid>.sock" entry in dir. A missing
// directory yields no candidates.
func CandidatesIn(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read socket directory: %w", err)
	}

	var pids []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pid, ok := ParseSocketName(entry.Name()); ok {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

//go:build windows

package endpoint

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
)

const dialTimeout = 5 * time.Second

// Address returns the control endpoint address for pid on this platform.
func Address(pid int) string {
	return PipeAddress(pid)
}

// DefaultDir returns the namespace enumerated for control pipes.
func DefaultDir() string {
	return pipeNamespace
}

// AddressIn returns the control pipe for pid. Pipes live in a single
// namespace, so dir is ignored.
func AddressIn(dir string, pid int) string {
	return PipeAddress(pid)
}

// Dial connects to a control endpoint.
func Dial(ctx context.Context, address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return winio.DialPipeContext(ctx, address)
}

// Listen creates a control endpoint at address.
func Listen(address string) (net.Listener, error) {
	return winio.ListenPipe(address, nil)
}

// Candidates lists the pids of every runtime pipe in the pipe namespace.
func Candidates(ctx context.Context) ([]int, error) {
	return CandidatesIn(pipeNamespace)
}

// CandidatesIn lists the pids of every runtime pipe found in dir.
func CandidatesIn(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate named pipes: %w", err)
	}

	var pids []int
	for _, entry := range entries {
		if pid, ok := ParsePipeName(entry.Name()); ok {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

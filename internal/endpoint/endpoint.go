package endpoint

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// PipePrefix is the reserved named-pipe prefix for runtime endpoints.
	PipePrefix = `\\.\pipe\platformatic-`

	pipeNamespace = `\\.\pipe\`
	socketSuffix  = ".sock"
)

// SocketDir returns the well-known directory holding POSIX control sockets.
func SocketDir() string {
	return filepath.Join(os.TempDir(), "platformatic", "pids")
}

// SocketAddress returns the POSIX control socket path for pid under baseDir.
func SocketAddress(baseDir string, pid int) string {
	return filepath.Join(baseDir, strconv.Itoa(pid)+socketSuffix)
}

// PipeAddress returns the Windows named pipe for pid.
func PipeAddress(pid int) string {
	return PipePrefix + strconv.Itoa(pid)
}

// ParseSocketName extracts the pid from a directory entry named "<pid>.sock".
func ParseSocketName(name string) (int, bool) {
	id, ok := strings.CutSuffix(name, socketSuffix)
	if !ok {
		return 0, false
	}
	return parsePID(id)
}

// ParsePipeName extracts the pid from a pipe named "platformatic-<pid>",
// with or without the \\.\pipe\ namespace.
func ParsePipeName(name string) (int, bool) {
	name = strings.TrimPrefix(name, pipeNamespace)
	id, ok := strings.CutPrefix(name, strings.TrimPrefix(PipePrefix, pipeNamespace))
	if !ok {
		return 0, false
	}
	return parsePID(id)
}

func parsePID(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

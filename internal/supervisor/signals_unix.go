//go:build !windows

package supervisor

import (
	"os"

	"golang.org/x/sys/unix"
)

// diagnosticsSignal is relayed to the unit as MessageDiagnostics.
var diagnosticsSignal os.Signal = unix.SIGUSR2

// terminationSignals are relayed to the unit as MessageShutdown.
var terminationSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP}

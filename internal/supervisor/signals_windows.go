//go:build windows

package supervisor

import "os"

// Windows has no user diagnostics signal.
var diagnosticsSignal os.Signal

var terminationSignals = []os.Signal{os.Interrupt}

package logging

import (
	"fmt"
	"io"
	"os"
)

// User-facing output with status glyphs, kept apart from structured logs.
// The writers are variables so command tests can capture them.
var (
	UserOut io.Writer = os.Stdout
	UserErr io.Writer = os.Stderr

	defaultUserOut = UserOut
	defaultUserErr = UserErr
)

// UserInfo prints an info message to UserOut.
func UserInfo(format string, args ...interface{}) {
	fmt.Fprintf(UserOut, "ℹ "+format+"\n", args...)
}

// UserSuccess prints a success message to UserOut.
func UserSuccess(format string, args ...interface{}) {
	fmt.Fprintf(UserOut, "✓ "+format+"\n", args...)
}

// UserWarning prints a warning message to UserErr.
func UserWarning(format string, args ...interface{}) {
	fmt.Fprintf(UserErr, "⚠ "+format+"\n", args...)
}

// UserError prints an error message to UserErr.
func UserError(format string, args ...interface{}) {
	fmt.Fprintf(UserErr, "✗ "+format+"\n", args...)
}

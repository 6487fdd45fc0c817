// Package logging provides logging utilities for rtctl.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("fetching metadata", "pid", pid)
//	logging.Warn("candidate unreachable", "pid", pid, "error", err)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Stopping runtime %d...", pid)
//	logging.UserSuccess("Reloaded runtime %d", pid)
//	logging.UserWarning("No runtimes found")
//	logging.UserError("Failed to restart runtime: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: UserOut (stdout)
//   - UserWarning, UserError: UserErr (stderr)
//
// # Runtime Log Records
//
// RecordRenderer turns raw JSON records streamed from a runtime into
// console lines using zerolog's ConsoleWriter.
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging

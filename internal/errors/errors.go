package errors

import (
	"errors"
	"fmt"
)

// Exit codes for rtctl
const (
	ExitSuccess             = 0
	ExitGeneralError        = 1
	ExitRuntimeNotFound     = 2
	ExitMetadataFailed      = 3
	ExitServicesFailed      = 4
	ExitServiceConfigFailed = 5
	ExitRuntimeConfigFailed = 6
	ExitEnvFailed           = 7
	ExitReloadFailed        = 8
	ExitStopFailed          = 9
	ExitLogStreamFailed     = 10
	ExitConfigError         = 11
	ExitSpawnFailed         = 12
	ExitUnitCrashed         = 13
	ExitClientClosed        = 14
)

// Op names the control operation an error belongs to.
type Op string

const (
	OpResolve       Op = "resolve"
	OpMetadata      Op = "get-metadata"
	OpServices      Op = "get-services"
	OpServiceConfig Op = "get-service-config"
	OpConfig        Op = "get-config"
	OpEnv           Op = "get-env"
	OpReload        Op = "reload"
	OpStop          Op = "stop"
	OpRestart       Op = "restart"
	OpLogs          Op = "stream-logs"
	OpProxy         Op = "proxy"
	OpSupervise     Op = "supervise"
)

// CtlError is the base error type for rtctl.
//
// Detail carries the remote error text verbatim when the runtime answered
// with a non-200 status.
type CtlError struct {
	Code    int
	Op      Op
	Message string
	Detail  string
	Cause   error
}

func (e *CtlError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CtlError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *CtlError) ExitCode() int {
	return e.Code
}

// New creates a new CtlError
func New(code int, message string) *CtlError {
	return &CtlError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a CtlError
func Wrap(code int, message string, cause error) *CtlError {
	return &CtlError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// remote builds an error for a non-200 control response.
func remote(code int, op Op, message, detail string) *CtlError {
	return &CtlError{
		Code:    code,
		Op:      op,
		Message: message,
		Detail:  detail,
	}
}

// RuntimeNotFound returns an error for a selector that matched no single runtime
func RuntimeNotFound(selector string) *CtlError {
	return &CtlError{
		Code:    ExitRuntimeNotFound,
		Op:      OpResolve,
		Message: fmt.Sprintf("runtime not found: %s", selector),
	}
}

// FailedToGetRuntimeMetadata returns the error for a failed /api/metadata call
func FailedToGetRuntimeMetadata(detail string) *CtlError {
	return remote(ExitMetadataFailed, OpMetadata, "failed to get runtime metadata", detail)
}

// FailedToGetRuntimeServices returns the error for a failed /api/services call
func FailedToGetRuntimeServices(detail string) *CtlError {
	return remote(ExitServicesFailed, OpServices, "failed to get runtime services", detail)
}

// FailedToGetRuntimeServiceConfig returns the error for a failed service config call
func FailedToGetRuntimeServiceConfig(detail string) *CtlError {
	return remote(ExitServiceConfigFailed, OpServiceConfig, "failed to get runtime service config", detail)
}

// FailedToGetRuntimeConfig returns the error for a failed /api/config call
func FailedToGetRuntimeConfig(detail string) *CtlError {
	return remote(ExitRuntimeConfigFailed, OpConfig, "failed to get runtime config", detail)
}

// FailedToGetRuntimeEnv returns the error for a failed /api/env call
func FailedToGetRuntimeEnv(detail string) *CtlError {
	return remote(ExitEnvFailed, OpEnv, "failed to get runtime env", detail)
}

// FailedToReloadRuntime returns the error for a failed /api/reload call
func FailedToReloadRuntime(detail string) *CtlError {
	return remote(ExitReloadFailed, OpReload, "failed to reload runtime", detail)
}

// FailedToStopRuntime returns the error for a failed /api/stop call
func FailedToStopRuntime(detail string) *CtlError {
	return remote(ExitStopFailed, OpStop, "failed to stop runtime", detail)
}

// FailedToStreamRuntimeLogs returns the error raised on a log stream whose
// transport failed.
func FailedToStreamRuntimeLogs(cause error) *CtlError {
	return &CtlError{
		Code:    ExitLogStreamFailed,
		Op:      OpLogs,
		Message: "failed to stream runtime logs",
		Cause:   cause,
	}
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *CtlError {
	return Wrap(ExitConfigError, message, cause)
}

// SpawnFailed returns an error for a replacement process that could not be started
func SpawnFailed(command string, cause error) *CtlError {
	return &CtlError{
		Code:    ExitSpawnFailed,
		Op:      OpRestart,
		Message: fmt.Sprintf("failed to spawn %s", command),
		Cause:   cause,
	}
}

// RuntimeNotReady returns the error for a replacement runtime whose control
// endpoint never answered within the readiness wait
func RuntimeNotReady(pid int, cause error) *CtlError {
	return &CtlError{
		Code:    ExitSpawnFailed,
		Op:      OpRestart,
		Message: fmt.Sprintf("runtime %d did not become reachable", pid),
		Cause:   cause,
	}
}

// UnitCrashed returns the error for an execution unit that exited with an error
func UnitCrashed(cause error) *CtlError {
	return &CtlError{
		Code:    ExitUnitCrashed,
		Op:      OpSupervise,
		Message: "execution unit crashed",
		Cause:   cause,
	}
}

// ClientClosed returns the error for calls made on a closed control client
func ClientClosed() *CtlError {
	return New(ExitClientClosed, "control client is closed")
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *CtlError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var ctlErr *CtlError
	if errors.As(err, &ctlErr) {
		return ctlErr.ExitCode()
	}
	return ExitGeneralError
}

// HasCode reports whether err's chain contains a CtlError with the given code.
func HasCode(err error, code int) bool {
	var ctlErr *CtlError
	if errors.As(err, &ctlErr) {
		return ctlErr.Code == code
	}
	return false
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

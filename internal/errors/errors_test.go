package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCtlError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *CtlError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
		{
			name:    "with remote detail",
			err:     FailedToStopRuntime("boom"),
			wantMsg: "failed to stop runtime: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestCtlError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      *CtlError
		wantCode int
		wantOp   Op
	}{
		{"metadata", FailedToGetRuntimeMetadata("boom"), ExitMetadataFailed, OpMetadata},
		{"services", FailedToGetRuntimeServices("boom"), ExitServicesFailed, OpServices},
		{"service config", FailedToGetRuntimeServiceConfig("boom"), ExitServiceConfigFailed, OpServiceConfig},
		{"config", FailedToGetRuntimeConfig("boom"), ExitRuntimeConfigFailed, OpConfig},
		{"env", FailedToGetRuntimeEnv("boom"), ExitEnvFailed, OpEnv},
		{"reload", FailedToReloadRuntime("boom"), ExitReloadFailed, OpReload},
		{"stop", FailedToStopRuntime("boom"), ExitStopFailed, OpStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", tt.err.Op, tt.wantOp)
			}
			if tt.err.Detail != "boom" {
				t.Errorf("Detail = %q, want %q", tt.err.Detail, "boom")
			}
			if !strings.Contains(tt.err.Error(), "boom") {
				t.Errorf("Error() = %q, should contain remote detail", tt.err.Error())
			}
		})
	}
}

func TestRuntimeNotFound(t *testing.T) {
	err := RuntimeNotFound("pid 42")

	if err.Code != ExitRuntimeNotFound {
		t.Errorf("Code = %d, want %d", err.Code, ExitRuntimeNotFound)
	}
	if err.Message != "runtime not found: pid 42" {
		t.Errorf("Message = %q, want %q", err.Message, "runtime not found: pid 42")
	}
}

func TestFailedToStreamRuntimeLogs(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := FailedToStreamRuntimeLogs(cause)

	if err.Code != ExitLogStreamFailed {
		t.Errorf("Code = %d, want %d", err.Code, ExitLogStreamFailed)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the transport cause")
	}
}

func TestSpawnFailed(t *testing.T) {
	cause := fmt.Errorf("exec: not found")
	err := SpawnFailed("node", cause)

	if err.Code != ExitSpawnFailed {
		t.Errorf("Code = %d, want %d", err.Code, ExitSpawnFailed)
	}
	if err.Message != "failed to spawn node" {
		t.Errorf("Message = %q, want %q", err.Message, "failed to spawn node")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "CtlError",
			err:      RuntimeNotFound("any"),
			wantCode: ExitRuntimeNotFound,
		},
		{
			name:     "wrapped CtlError",
			err:      fmt.Errorf("outer: %w", UnitCrashed(fmt.Errorf("panic"))),
			wantCode: ExitUnitCrashed,
		},
		{
			name:     "regular error",
			err:      fmt.Errorf("some error"),
			wantCode: ExitGeneralError,
		},
		{
			name:     "nil error",
			err:      nil,
			wantCode: ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.wantCode {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", FailedToReloadRuntime("nope"))

	if !HasCode(err, ExitReloadFailed) {
		t.Error("HasCode() should find the reload code in a wrapped error")
	}
	if HasCode(err, ExitStopFailed) {
		t.Error("HasCode() should not match a different code")
	}
	if HasCode(fmt.Errorf("plain"), ExitReloadFailed) {
		t.Error("HasCode() should be false for non-CtlError")
	}
}

func TestErrorChaining(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := Wrap(ExitConfigError, "config error", root)
	outer := fmt.Errorf("operation failed: %w", middle)

	if !errors.Is(outer, root) {
		t.Error("errors.Is should find root cause")
	}

	var ctlErr *CtlError
	if !As(outer, &ctlErr) {
		t.Error("As should find CtlError")
	}
	if ctlErr.Code != ExitConfigError {
		t.Errorf("Code = %d, want %d", ctlErr.Code, ExitConfigError)
	}
}

func TestRuntimeNotReady(t *testing.T) {
	err := RuntimeNotReady(77, fmt.Errorf("context deadline exceeded"))

	if err.Code != ExitSpawnFailed {
		t.Errorf("Code = %d, want %d", err.Code, ExitSpawnFailed)
	}
	if err.Op != OpRestart {
		t.Errorf("Op = %q, want %q", err.Op, OpRestart)
	}
	if !strings.Contains(err.Error(), "runtime 77") {
		t.Errorf("Error() = %q, should name the pid", err.Error())
	}
}

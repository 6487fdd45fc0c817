// Package errors provides typed errors with exit codes for rtctl.
//
// # Error Types
//
// CtlError is the base error type. It wraps an error with an exit code and
// names the control operation that failed:
//
//	type CtlError struct {
//	    Code    int    // Exit code
//	    Op      Op     // Failing operation
//	    Message string // User-facing message
//	    Detail  string // Remote error text, verbatim
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess             = 0
//	ExitGeneralError        = 1
//	ExitRuntimeNotFound     = 2
//	ExitMetadataFailed      = 3
//	ExitServicesFailed      = 4
//	ExitServiceConfigFailed = 5
//	ExitRuntimeConfigFailed = 6
//	ExitEnvFailed           = 7
//	ExitReloadFailed        = 8
//	ExitStopFailed          = 9
//	ExitLogStreamFailed     = 10
//	ExitConfigError         = 11
//	ExitSpawnFailed         = 12
//	ExitUnitCrashed         = 13
//	ExitClientClosed        = 14
//
// # Error Constructors
//
// Every non-200 control response maps to one constructor that keeps the
// response body as the error detail:
//
//	errors.FailedToGetRuntimeMetadata(body)
//	errors.FailedToStopRuntime(body)
//	errors.RuntimeNotFound("pid 42")
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors

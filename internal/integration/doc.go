// Package integration provides a test harness for integration tests
// that run real rtctl runtime processes.
//
// Integration tests are skipped unless the RTCTL_INTEGRATION_TESTS
// environment variable is set. These tests require:
//   - a Go toolchain, used to build the rtctl binary once per test
//   - a POSIX host (control endpoints are Unix sockets)
//
// # Test Harness
//
// TestHarness manages test environments:
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    dir := integration.WriteProject(t, "shop")
//	    cmd := h.StartRuntime(dir)
//	    meta := h.WaitForRuntime(cmd.Process.Pid, 10*time.Second)
//
//	    // Drive the runtime through h.Client()...
//
//	    // Cleanup is automatic via t.Cleanup
//	}
//
// # Harness Features
//
// The harness provides:
//   - A private socket directory and state directory, exported through
//     RTCTL_SOCKET_DIR and RTCTL_STATE_DIR so spawned runtimes inherit them
//   - Project creation (WriteProject)
//   - Runtime readiness waiting (WaitForRuntime)
//   - Process tracking for cleanup (StartRuntime, TrackPID)
//   - A control client and discovery service bound to the socket directory
//
// # Running Integration Tests
//
//	RTCTL_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration

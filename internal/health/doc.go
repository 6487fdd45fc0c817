// Package health summarizes whether a runtime is answering its control API.
//
// # Health Status
//
// Runtime health is represented by Status:
//
//	StatusHealthy     - Control API reachable, every service started
//	StatusDegraded    - Control API reachable, some service not started
//	StatusUnreachable - Control endpoint not answering
//	StatusError       - Control API answering with errors
//
// # Check Functions
//
//	result := health.Check(ctx, client, pid)
//	// result.Reachable, .Uptime, .Services, .NotStarted
//
//	status := health.GetSummary(ctx, client, pid)
//
// FormatUptime renders a runtime's uptimeSeconds for display.
package health

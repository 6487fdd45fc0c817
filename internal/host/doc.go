// Package host runs a runtime inside the current process.
//
// A Host serves the configured services as static file trees, exposes the
// control API on the process's control endpoint, and publishes its own log
// records to log stream subscribers. Unit adapts a Host into an execution
// unit for the supervisor.
package host

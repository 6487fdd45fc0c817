// Package control implements the client side of the runtime control API.
//
// A Client talks to runtimes over their local control endpoints (unix
// sockets on POSIX, named pipes on Windows) using HTTP framing. It keeps one
// transport per runtime pid, reused by every call against that pid, and
// tracks every open log stream so Close can release them all.
//
// Read operations:
//   - Metadata, Services, ServiceConfig, Config, Env
//
// Lifecycle operations:
//   - Reload, Stop, Restart
//
// Tunnelling and streaming:
//   - Proxy forwards an arbitrary request into one of the runtime's services
//   - StreamLogs tails the runtime's live log records
//
// Any status other than 200 is reported as the operation's typed error from
// internal/errors carrying the response body verbatim. Calls are never
// retried.
package control

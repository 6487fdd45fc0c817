// Package endpoint locates and connects to runtime control endpoints.
//
// Every runtime listens on one IPC address derived only from its pid:
//
//	POSIX:   <tmpdir>/platformatic/pids/<pid>.sock
//	Windows: \\.\pipe\platformatic-<pid>
//
// Address derivation is pure, so an endpoint created by one implementation
// can be found by any other. Both conventions are exported (SocketAddress,
// PipeAddress) so they can be checked on any host; Address picks the one for
// the running platform.
//
// Dial, Listen and Candidates are the platform-specific halves: unix
// sockets on POSIX, named pipes (via go-winio) on Windows.
package endpoint

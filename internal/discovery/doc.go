// Package discovery finds the runtimes running on this host.
//
// Candidates are enumerated from the control endpoint namespace, every
// candidate is asked for its metadata concurrently, and only the candidates
// that answered are kept. A dead or unreachable endpoint never affects the
// others.
package discovery

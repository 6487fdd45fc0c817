// Package system abstracts OS process creation so callers that relaunch
// runtimes can be tested without spawning real processes.
//
// DefaultStarter returns the os/exec backed implementation; tests swap in a
// MockStarter that records every ProcessSpec it receives.
package system

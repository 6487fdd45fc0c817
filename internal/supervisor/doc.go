// Package supervisor runs a runtime's execution unit and owns its
// lifecycle inside the host process.
//
// The lifecycle is a small state machine:
//
//	Starting -> Ready -> Running -> ShuttingDown -> Stopped
//	Starting | Running -> Crashed
//
// The supervisor starts the unit, waits for its readiness event, then builds
// a control client and, when configured, the management side channel. It
// never acts on the diagnostics signal or on termination requests itself;
// both are relayed to the unit as typed messages and the unit decides when
// to exit. A unit that exits with an error before shutdown was requested
// crashes the host with a non-zero exit code. Nothing is restarted.
package supervisor

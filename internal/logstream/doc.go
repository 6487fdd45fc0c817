// Package logstream adapts an event-driven message connection into a
// pull-based stream of log records.
//
// A reader goroutine moves each inbound message into a bounded queue that
// the consumer drains with Recv. When the queue reaches its high-water mark
// the reader stops reading, so a slow consumer applies back-pressure to the
// transport instead of growing memory.
//
// Termination is always one of:
//   - transport closed: Recv returns io.EOF once the queue is drained
//   - transport failed: Recv returns a FailedToStreamRuntimeLogs error
//     once the queue is drained
//   - consumer Close: the transport is closed and Recv returns io.EOF
//
// There is no reconnection. Callers that want to resume open a new stream.
package logstream

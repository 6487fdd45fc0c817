package logstream

import (
	"context"
	stderrors "errors"
	"io"
	"iter"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/firefly-engineering/rtctl/internal/errors"
)

// DefaultHighWaterMark is the number of undelivered records buffered before
// the reader pauses.
const DefaultHighWaterMark = 256

// MessageConn is the transport side of a stream. *websocket.Conn satisfies it.
type MessageConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Option configures a Stream.
type Option func(*Stream)

// WithHighWaterMark sets the queue bound. Values below 1 are ignored.
func WithHighWaterMark(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.highWaterMark = n
		}
	}
}

// WithOnEnd registers fn to run once when the transport side finishes,
// whatever the reason.
func WithOnEnd(fn func()) Option {
	return func(s *Stream) {
		s.onEnd = fn
	}
}

// Stream is a pull-based log record stream over a MessageConn.
type Stream struct {
	conn          MessageConn
	highWaterMark int
	onEnd         func()

	chunks  chan []byte
	stopped chan struct{}
	done    chan struct{}

	// err is written by the reader before chunks is closed.
	err error

	closeOnce sync.Once
	closeErr  error
}

// New starts streaming from conn.
func New(conn MessageConn, opts ...Option) *Stream {
	s := &Stream{
		conn:          conn,
		highWaterMark: DefaultHighWaterMark,
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.chunks = make(chan []byte, s.highWaterMark)

	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer func() {
		close(s.chunks)
		_ = s.conn.Close()
		close(s.done)
		if s.onEnd != nil {
			s.onEnd()
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isStopped() && !isCleanClose(err) {
				s.err = errors.FailedToStreamRuntimeLogs(err)
			}
			return
		}

		select {
		case s.chunks <- data:
		case <-s.stopped:
			return
		}
	}
}

// isCleanClose reports whether err marks a normal end of the transport.
// Any websocket close, including an abnormal 1006 drop, counts as an end
// rather than a failure.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		return true
	}
	return stderrors.Is(err, io.EOF)
}

func (s *Stream) isStopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

// Recv returns the next record. It returns io.EOF after a clean end and a
// FailedToStreamRuntimeLogs error after a transport failure; both only once
// every buffered record has been delivered. After Close, Recv returns io.EOF.
func (s *Stream) Recv(ctx context.Context) ([]byte, error) {
	if s.isStopped() {
		return nil, io.EOF
	}

	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.EOF
		}
		return chunk, nil
	case <-s.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// All iterates records until the stream ends. A clean end stops the
// iteration silently; any other termination is yielded as the final error.
func (s *Stream) All(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := s.Recv(ctx)
			if err == io.EOF {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Done returns a channel closed once the transport side has finished.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close stops the stream and closes the transport. It is safe to call more
// than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopped)
		select {
		case <-s.done:
			// The reader already released the transport.
		default:
			s.closeErr = s.conn.Close()
		}
	})
	return s.closeErr
}

package host

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/logging"
)

// Numeric record levels, as understood by log stream consumers.
const (
	LevelTrace = 10
	LevelDebug = 20
	LevelInfo  = 30
	LevelWarn  = 40
	LevelError = 50
	LevelFatal = 60
)

// subscriberBuffer is how many records a subscriber may lag behind before
// records are dropped for it.
const subscriberBuffer = 64

var levelNames = map[string]int{
	"trace": LevelTrace,
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
	"fatal": LevelFatal,
}

type record struct {
	Level    int    `json:"level"`
	Time     int64  `json:"time"`
	PID      int    `json:"pid"`
	Hostname string `json:"hostname,omitempty"`
	Name     string `json:"name"`
	Msg      string `json:"msg"`
}

type subscriber struct {
	ch       chan []byte
	minLevel int
	service  string
}

// logHub fans log records out to log stream subscribers.
type logHub struct {
	pid      int
	hostname string

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newLogHub() *logHub {
	hostname, _ := os.Hostname()
	return &logHub{
		pid:      os.Getpid(),
		hostname: hostname,
		subs:     make(map[*subscriber]struct{}),
	}
}

// subscribe registers a subscriber until ctx is done or the hub closes.
func (h *logHub) subscribe(ctx context.Context, filter control.LogFilter) <-chan []byte {
	sub := &subscriber{
		ch:      make(chan []byte, subscriberBuffer),
		service: filter.ServiceID,
	}
	if lvl, ok := levelNames[strings.ToLower(filter.Level)]; ok {
		sub.minLevel = lvl
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(sub)
	}()
	return sub.ch
}

func (h *logHub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// publish sends one record from name (a service id or "runtime").
func (h *logHub) publish(level int, name, msg string) {
	data, err := json.Marshal(record{
		Level:    level,
		Time:     time.Now().UnixMilli(),
		PID:      h.pid,
		Hostname: h.hostname,
		Name:     name,
		Msg:      msg,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if level < sub.minLevel || (sub.service != "" && sub.service != name) {
			continue
		}
		select {
		case sub.ch <- data:
		default:
			logging.Debug("dropping log record for slow subscriber", "name", name)
		}
	}
}

// close ends every subscription.
func (h *logHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

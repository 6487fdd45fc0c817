package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
)

// FakeRuntime is an in-memory runtime answering the control API. It
// implements controlapi.Backend.
type FakeRuntime struct {
	mu             sync.Mutex
	meta           control.RuntimeMetadata
	services       control.Services
	serviceConfigs map[string]map[string]any
	config         map[string]any
	env            map[string]string
	failures       map[errors.Op]string
	handlers       map[string]http.Handler
	logRecords     [][]byte
	holdLogs       bool
	logFilters     []control.LogFilter
	reloads        int
	stops          int
	onStop         func()
}

// NewFakeRuntime creates a fake answering with meta and the fixture
// services and config.
func NewFakeRuntime(meta control.RuntimeMetadata) *FakeRuntime {
	services, _ := RuntimeServices()
	config, _ := RuntimeConfig()
	return &FakeRuntime{
		meta:           meta,
		services:       services,
		serviceConfigs: make(map[string]map[string]any),
		config:         config,
		env:            map[string]string{"NODE_ENV": "production"},
		failures:       make(map[errors.Op]string),
		handlers:       make(map[string]http.Handler),
	}
}

// PID returns the pid reported in the fake's metadata.
func (f *FakeRuntime) PID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta.PID
}

// Fail makes op answer 500 with text as the body.
func (f *FakeRuntime) Fail(op errors.Op, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = text
}

func (f *FakeRuntime) SetServices(services control.Services) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = services
}

func (f *FakeRuntime) SetServiceConfig(serviceID string, config map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serviceConfigs[serviceID] = config
}

func (f *FakeRuntime) SetEnv(env map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env = env
}

// Handle routes proxied requests for serviceID to h.
func (f *FakeRuntime) Handle(serviceID string, h http.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[serviceID] = h
}

// SetLogs sets the records sent to every log subscriber. Unless hold is
// set, the subscription ends after the last record.
func (f *FakeRuntime) SetLogs(records []string, hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logRecords = nil
	for _, r := range records {
		f.logRecords = append(f.logRecords, []byte(r))
	}
	f.holdLogs = hold
}

// OnStop runs fn inside every stop request before it is answered.
func (f *FakeRuntime) OnStop(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onStop = fn
}

func (f *FakeRuntime) Reloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func (f *FakeRuntime) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// LogFilters returns the filters of every log subscription so far.
func (f *FakeRuntime) LogFilters() []control.LogFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]control.LogFilter, len(f.logFilters))
	copy(out, f.logFilters)
	return out
}

func (f *FakeRuntime) failure(op errors.Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text, ok := f.failures[op]; ok {
		return fmt.Errorf("%s", text)
	}
	return nil
}

func (f *FakeRuntime) Metadata(ctx context.Context) (control.RuntimeMetadata, error) {
	if err := f.failure(errors.OpMetadata); err != nil {
		return control.RuntimeMetadata{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta, nil
}

func (f *FakeRuntime) Services(ctx context.Context) (control.Services, error) {
	if err := f.failure(errors.OpServices); err != nil {
		return control.Services{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services, nil
}

func (f *FakeRuntime) ServiceConfig(ctx context.Context, serviceID string) (map[string]any, error) {
	if err := f.failure(errors.OpServiceConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.serviceConfigs[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %s not found", serviceID)
	}
	return cfg, nil
}

func (f *FakeRuntime) Config(ctx context.Context) (map[string]any, error) {
	if err := f.failure(errors.OpConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config, nil
}

func (f *FakeRuntime) Env(ctx context.Context) (map[string]string, error) {
	if err := f.failure(errors.OpEnv); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.env, nil
}

func (f *FakeRuntime) Reload(ctx context.Context) error {
	if err := f.failure(errors.OpReload); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *FakeRuntime) Stop(ctx context.Context) error {
	if err := f.failure(errors.OpStop); err != nil {
		return err
	}
	f.mu.Lock()
	f.stops++
	onStop := f.onStop
	f.mu.Unlock()

	if onStop != nil {
		onStop()
	}
	return nil
}

func (f *FakeRuntime) SubscribeLogs(ctx context.Context, filter control.LogFilter) (<-chan []byte, error) {
	if err := f.failure(errors.OpLogs); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.logFilters = append(f.logFilters, filter)
	records := f.logRecords
	hold := f.holdLogs
	f.mu.Unlock()

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		for _, r := range records {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *FakeRuntime) ServiceHandler(serviceID string) (http.Handler, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handlers[serviceID]
	return h, ok
}

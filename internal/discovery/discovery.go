package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/observability"
)

// CandidateLister enumerates the pids that may have a live control endpoint.
type CandidateLister func(ctx context.Context) ([]int, error)

// MetadataFetcher fetches one runtime's metadata. *control.Client satisfies it.
type MetadataFetcher interface {
	Metadata(ctx context.Context, pid int) (control.RuntimeMetadata, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCandidateLister overrides candidate enumeration.
func WithCandidateLister(fn CandidateLister) Option {
	return func(s *Service) {
		s.candidates = fn
	}
}

// Service discovers runtimes through a shared control client.
type Service struct {
	client     MetadataFetcher
	candidates CandidateLister
}

// New creates a Service fetching metadata through client.
func New(client MetadataFetcher, opts ...Option) *Service {
	s := &Service{
		client:     client,
		candidates: endpoint.Candidates,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates returns the pids found in the endpoint namespace, reachable or
// not.
func (s *Service) Candidates(ctx context.Context) ([]int, error) {
	pids, err := s.candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate control endpoints: %w", err)
	}
	sort.Ints(pids)
	return pids, nil
}

// ListRuntimes returns the metadata of every runtime that answered, sorted
// by pid.
func (s *Service) ListRuntimes(ctx context.Context) ([]control.RuntimeMetadata, error) {
	pids, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := Settle(ctx, pids, s.client.Metadata)
	for _, o := range outcomes {
		if o.Err != nil {
			logging.Debug("skipping unreachable runtime", "pid", pids[o.Index], "error", o.Err)
		}
	}

	runtimes := Successes(outcomes)
	sort.Slice(runtimes, func(i, j int) bool {
		return runtimes[i].PID < runtimes[j].PID
	})
	observability.RecordDiscovery(len(runtimes))
	return runtimes, nil
}

// ResolveOne returns the single runtime matched by sel, or RuntimeNotFound.
func (s *Service) ResolveOne(ctx context.Context, sel Selector) (control.RuntimeMetadata, error) {
	runtimes, err := s.ListRuntimes(ctx)
	if err != nil {
		return control.RuntimeMetadata{}, err
	}

	if match, ok := Match(runtimes, sel); ok {
		return match, nil
	}
	return control.RuntimeMetadata{}, errors.RuntimeNotFound(sel.String())
}

// Match applies sel to an already discovered set.
func Match(runtimes []control.RuntimeMetadata, sel Selector) (control.RuntimeMetadata, bool) {
	switch sel := sel.(type) {
	case ByPid:
		for _, rt := range runtimes {
			if rt.PID == sel.PID {
				return rt, true
			}
		}
	case ByName:
		for _, rt := range runtimes {
			if rt.PackageName == sel.Name {
				return rt, true
			}
		}
	case Any:
		if len(runtimes) == 1 {
			return runtimes[0], true
		}
	}
	return control.RuntimeMetadata{}, false
}

// Package upstreamregistry implements the C7 collaborator that answers
// "what upstream groups and servers exist": a static, config-seeded
// ports.UpstreamRegistry (spec.md §6: the route table is read-only after
// start, and "hot-reload re-validates and logs" rather than hot-swapping
// live traffic).
package upstreamregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Static is the shipped ports.UpstreamRegistry: an RWMutex-guarded map of
// group id to *domain.UpstreamGroup, grounded on the teacher's
// StaticEndpointRepository (internal/adapter/discovery/static.go), whose
// GetAll/lookup/replace shape this mirrors one for one, generalised from
// *domain.Endpoint to *domain.UpstreamGroup.
type Static struct {
	mu     sync.RWMutex
	groups map[string]*domain.UpstreamGroup
}

var _ ports.UpstreamRegistry = (*Static)(nil)

// New builds a Static registry pre-seeded with groups, as the runtime does
// once at startup from the validated configuration.
func New(groups []*domain.UpstreamGroup) *Static {
	s := &Static{groups: make(map[string]*domain.UpstreamGroup, len(groups))}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	return s
}

func (s *Static) Groups(ctx context.Context) ([]*domain.UpstreamGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.UpstreamGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *Static) Group(ctx context.Context, id string) (*domain.UpstreamGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("upstreamregistry: unknown group %q", id)
	}
	return g, nil
}

func (s *Static) Reload(ctx context.Context, groups []*domain.UpstreamGroup) error {
	next := make(map[string]*domain.UpstreamGroup, len(groups))
	for _, g := range groups {
		next[g.ID] = g
	}

	s.mu.Lock()
	s.groups = next
	s.mu.Unlock()
	return nil
}

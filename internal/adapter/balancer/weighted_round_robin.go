package balancer

import (
	"context"
	"sync"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// WeightedRoundRobinSelector implements the smooth weighted round-robin
// scheme (as used by nginx's upstream module): each healthy server
// accumulates its declared weight every selection, the one with the
// highest running total is picked, and its total is reduced by the sum
// of all weights. Over any window of Σw selections, server i is picked
// exactly w_i times (spec.md §4.6).
type WeightedRoundRobinSelector struct {
	monitor ports.HealthMonitor

	mu      sync.Mutex
	current map[string]int
}

var _ ports.EndpointSelector = (*WeightedRoundRobinSelector)(nil)

func NewWeightedRoundRobinSelector(monitor ports.HealthMonitor) *WeightedRoundRobinSelector {
	return &WeightedRoundRobinSelector{
		monitor: monitor,
		current: make(map[string]int),
	}
}

func (w *WeightedRoundRobinSelector) Name() string { return StrategyWeightedRoundRobin }

func (w *WeightedRoundRobinSelector) Select(_ context.Context, group *domain.UpstreamGroup, _ string) (*domain.UpstreamServer, error) {
	routable := healthySubset(group, w.monitor)
	if len(routable) == 0 {
		return nil, errNoServers(group)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	var best *domain.UpstreamServer
	bestCurrent := 0
	for _, s := range routable {
		weight := s.Weight
		if weight <= 0 {
			weight = 1
		}
		total += weight

		w.current[s.ID] += weight
		if best == nil || w.current[s.ID] > bestCurrent {
			best = s
			bestCurrent = w.current[s.ID]
		}
	}

	w.current[best.ID] -= total
	return best, nil
}

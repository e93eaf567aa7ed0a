package balancer

import (
	"context"
	"sync/atomic"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// RoundRobinSelector picks servers in a circular rotation over the
// healthy subset, in declared order (spec.md §4.6).
type RoundRobinSelector struct {
	monitor ports.HealthMonitor
	counter uint64
}

var _ ports.EndpointSelector = (*RoundRobinSelector)(nil)

func NewRoundRobinSelector(monitor ports.HealthMonitor) *RoundRobinSelector {
	return &RoundRobinSelector{monitor: monitor}
}

func (r *RoundRobinSelector) Name() string { return StrategyRoundRobin }

func (r *RoundRobinSelector) Select(_ context.Context, group *domain.UpstreamGroup, _ string) (*domain.UpstreamServer, error) {
	routable := healthySubset(group, r.monitor)
	if len(routable) == 0 {
		return nil, errNoServers(group)
	}

	current := atomic.AddUint64(&r.counter, 1) - 1 // subtract 1 to start from 0
	return routable[current%uint64(len(routable))], nil
}

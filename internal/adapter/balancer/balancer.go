// Package balancer implements the C6 load balancer: the round-robin,
// smooth weighted round-robin, least-connections, and IP-hash selection
// strategies over a group's healthy server subset (spec.md §4.6).
package balancer

import (
	"fmt"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

const (
	StrategyRoundRobin         = "round-robin"
	StrategyWeightedRoundRobin = "weighted-round-robin"
	StrategyLeastConnections   = "least-connections"
	StrategyIPHash             = "ip-hash"
)

// healthySubset returns group's servers in declared order, filtered to
// those the health monitor currently reports routable. A server with no
// health record at all — no health check configured for the group, or
// not yet probed — is treated as routable; only an explicit unhealthy
// record excludes it (spec.md §4.6's "healthy subset" is about active
// exclusion, not requiring a probe to have run).
func healthySubset(group *domain.UpstreamGroup, monitor ports.HealthMonitor) []*domain.UpstreamServer {
	out := make([]*domain.UpstreamServer, 0, len(group.Servers))
	for _, s := range group.Servers {
		if !s.Enabled {
			continue
		}
		if monitor != nil {
			if state, ok := monitor.State(s.ID); ok && state.State == domain.HealthUnhealthy {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func errNoServers(group *domain.UpstreamGroup) error {
	return fmt.Errorf("load balancer: no healthy servers in group %q", group.ID)
}

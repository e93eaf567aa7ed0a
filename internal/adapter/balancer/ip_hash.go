package balancer

import (
	"context"
	"hash/fnv"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// IPHashSelector picks servers[hash(client-ip) % len(servers)], the same
// modulo-indexing technique round_robin.go uses with an atomic counter,
// but keyed by a stable hash of the client IP instead — so requests from
// the same client land on the same server unless the healthy subset
// changes (spec.md §4.6).
type IPHashSelector struct {
	monitor ports.HealthMonitor
}

var _ ports.EndpointSelector = (*IPHashSelector)(nil)

func NewIPHashSelector(monitor ports.HealthMonitor) *IPHashSelector {
	return &IPHashSelector{monitor: monitor}
}

func (i *IPHashSelector) Name() string { return StrategyIPHash }

// Select hashes selectionKey: the proxy orchestrator passes the group's
// affinity key when it yields one, and the client IP otherwise.
func (i *IPHashSelector) Select(_ context.Context, group *domain.UpstreamGroup, clientIP string) (*domain.UpstreamServer, error) {
	routable := healthySubset(group, i.monitor)
	if len(routable) == 0 {
		return nil, errNoServers(group)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(clientIP))
	index := h.Sum32() % uint32(len(routable))
	return routable[index], nil
}

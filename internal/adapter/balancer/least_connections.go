package balancer

import (
	"context"
	"sync"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// LeastConnectionsSelector picks the healthy server with the fewest
// in-flight requests attributed to it by the proxy orchestrator (C9) via
// RecordConnection; ties are broken by declared order (spec.md §4.6).
type LeastConnectionsSelector struct {
	monitor     ports.HealthMonitor
	connections map[string]int64
	mu          sync.RWMutex
}

var (
	_ ports.EndpointSelector  = (*LeastConnectionsSelector)(nil)
	_ ports.ConnectionCounter = (*LeastConnectionsSelector)(nil)
)

func NewLeastConnectionsSelector(monitor ports.HealthMonitor) *LeastConnectionsSelector {
	return &LeastConnectionsSelector{
		monitor:     monitor,
		connections: make(map[string]int64),
	}
}

func (l *LeastConnectionsSelector) Name() string { return StrategyLeastConnections }

func (l *LeastConnectionsSelector) Select(_ context.Context, group *domain.UpstreamGroup, _ string) (*domain.UpstreamServer, error) {
	routable := healthySubset(group, l.monitor)
	if len(routable) == 0 {
		return nil, errNoServers(group)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var selected *domain.UpstreamServer
	minConnections := int64(-1)
	for _, server := range routable {
		count := l.connections[server.ID]
		if minConnections == -1 || count < minConnections {
			minConnections = count
			selected = server
		}
	}
	return selected, nil
}

// RecordConnection adjusts the in-flight count for serverID by delta. The
// load balancer must see the post-decrement value on the next selection
// (spec.md §4.6), which this map naturally provides since Select reads it
// under the same lock RecordConnection writes under.
func (l *LeastConnectionsSelector) RecordConnection(serverID string, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.connections[serverID] + int64(delta)
	if count < 0 {
		count = 0
	}
	l.connections[serverID] = count
}

// ConnectionCount reports the current in-flight count for serverID, for
// stats exposition.
func (l *LeastConnectionsSelector) ConnectionCount(serverID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connections[serverID]
}

package ports

import (
	"context"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// EndpointSelector picks one server from an upstream group for a single
// request (spec.md §4.6). Implementations are the round-robin, smooth
// weighted round-robin, least-connections and IP-hash strategies in
// internal/adapter/balancer.
type EndpointSelector interface {
	// Select returns the server chosen for this request, consulting only
	// the healthy subset the health monitor (C5) reports. selectionKey is
	// strategy-dependent: the session-affinity cookie/IP value when the
	// group has affinity configured, the client IP for the ip-hash
	// strategy, and ignored by strategies that need neither.
	Select(ctx context.Context, group *domain.UpstreamGroup, selectionKey string) (*domain.UpstreamServer, error)

	// Name identifies the strategy, used in logs and metric labels.
	Name() string
}

// ConnectionCounter is implemented by selectors (least-connections) that
// need the proxy orchestrator to report in-flight connection deltas.
type ConnectionCounter interface {
	RecordConnection(serverID string, delta int)
}

// HealthMonitor is the C5 port: it owns the active-probe scheduler and
// the per-server hysteresis state, and is consulted by EndpointSelector
// implementations to filter the routable subset.
type HealthMonitor interface {
	// IsHealthy reports the last known state for a server id.
	IsHealthy(serverID string) bool

	// State returns the full health record for a server, for the
	// /health endpoint and metrics exposition.
	State(serverID string) (domain.ServerHealth, bool)

	// RecordPassive feeds a passive observation (e.g. a proxied request
	// that failed) into the tracker without altering routability
	// (spec.md §4.5: passive feedback is recorded, not acted on).
	RecordPassive(serverID string, result domain.HealthCheckResult)

	// Start begins active probing of the given groups until ctx is
	// cancelled.
	Start(ctx context.Context, groups []*domain.UpstreamGroup) error

	// Stop halts all active probing.
	Stop(ctx context.Context) error
}

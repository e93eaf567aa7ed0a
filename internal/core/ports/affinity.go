package ports

import (
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// AffinityTracker is the C10 port: sticky-session routing plus per-server
// failure-window/cooldown accounting (spec.md §4.10). Both concerns share
// one tracker because they're consulted together on every request — the
// reverse proxy (C9) asks for a preferred server before load-balancing,
// and records failures/successes as it dispatches.
type AffinityTracker interface {
	// Resolve returns the server id a prior request with this selection
	// key was bound to, and whether that server is still available (not
	// marked down). ok is false if no mapping exists for the group.
	Resolve(group *domain.UpstreamGroup, selectionKey string) (serverID string, available bool, ok bool)

	// Bind records that selectionKey now maps to serverID, refreshing
	// last-used-at if the mapping already existed.
	Bind(group *domain.UpstreamGroup, selectionKey, serverID string)

	// Available reports whether serverID is currently eligible for
	// selection under the group's failover policy (not marked down, or
	// its cooldown has elapsed).
	Available(group *domain.UpstreamGroup, serverID string) bool

	// RecordFailure appends a failure timestamp to serverID's window,
	// marking it down if the group's failover threshold is reached.
	RecordFailure(group *domain.UpstreamGroup, serverID string)

	// Sweep evicts session mappings, across every group, that have been
	// idle past the tracker's eviction window.
	Sweep(now time.Time)
}

// AffinityCookie is what the reverse proxy writes back on a successful
// response when cookie-based affinity bound the request to a server.
type AffinityCookie struct {
	Name     string
	Value    string
	Path     string
	MaxAge   time.Duration
	HTTPOnly bool
}

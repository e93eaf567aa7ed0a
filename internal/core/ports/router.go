package ports

import (
	"github.com/brightloom/gatewire/internal/core/domain"
)

// RouteTable is the C7 port: an immutable-after-build set of routes,
// matched deterministically by priority, then longest literal prefix,
// then lexicographic id (spec.md §4.7).
type RouteTable interface {
	// Match returns the single best route for a request, or ok=false if
	// none matches (KindRouteNotFound).
	Match(method domain.Method, host, path string) (route *domain.Route, ok bool)

	// Routes returns every route in the table, in match-priority order.
	Routes() []*domain.Route
}

// RouteTableBuilder constructs an immutable RouteTable from a route list,
// used at startup and on config reload.
type RouteTableBuilder interface {
	Build(routes []*domain.Route) (RouteTable, error)
}

// Package router implements the C7 route table: an immutable,
// deterministically-ordered set of routes matched against each incoming
// request (spec.md §4.7).
package router

import (
	"sort"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Table is a RouteTable built once from a route list and never mutated
// afterwards; concurrent Match calls need no locking.
type Table struct {
	routes []*domain.Route
}

var _ ports.RouteTable = (*Table)(nil)

// Builder builds a Table, pre-sorting routes into match-priority order so
// Match can return the first predicate match it finds.
type Builder struct{}

var _ ports.RouteTableBuilder = (*Builder)(nil)

func NewBuilder() *Builder { return &Builder{} }

// Build pre-sorts routes by (priority desc, literal-prefix-length desc,
// id asc) — the same tie-break order spec.md §4.7 defines for selecting
// among multiple matches — so that scanning the sorted slice for the
// first route whose predicates all match a request already yields the
// globally correct winner, independent of the request itself.
func (b *Builder) Build(routes []*domain.Route) (ports.RouteTable, error) {
	sorted := make([]*domain.Route, len(routes))
	copy(sorted, routes)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, c := sorted[i], sorted[j]
		if a.Priority != c.Priority {
			return a.Priority > c.Priority
		}
		if a.LiteralPrefixLen() != c.LiteralPrefixLen() {
			return a.LiteralPrefixLen() > c.LiteralPrefixLen()
		}
		return a.ID < c.ID
	})

	return &Table{routes: sorted}, nil
}

// Match scans the pre-sorted route list for the first enabled route whose
// method, host and path predicates all match. Disabled routes never match
// (spec.md §4.7).
func (t *Table) Match(method domain.Method, host, path string) (*domain.Route, bool) {
	for _, r := range t.routes {
		if !r.Enabled {
			continue
		}
		if !r.MatchesMethod(method) {
			continue
		}
		if !r.MatchesHost(host) {
			continue
		}
		if !r.MatchesPath(path) {
			continue
		}
		return r, true
	}
	return nil, false
}

func (t *Table) Routes() []*domain.Route {
	out := make([]*domain.Route, len(t.routes))
	copy(out, t.routes)
	return out
}

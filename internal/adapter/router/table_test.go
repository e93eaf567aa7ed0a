package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func build(t *testing.T, routes ...*domain.Route) *Table {
	tbl, err := NewBuilder().Build(routes)
	require.NoError(t, err)
	return tbl.(*Table)
}

func TestTable_ExactPathMatch(t *testing.T) {
	r := domain.NewRoute("r1", "/v1/chat", "group-a", 0)
	tbl := build(t, r)

	got, ok := tbl.Match(domain.MethodGET, "", "/v1/chat")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)

	_, ok = tbl.Match(domain.MethodGET, "", "/v1/chat/extra")
	assert.False(t, ok)
}

func TestTable_PrefixPathMatch(t *testing.T) {
	r := domain.NewRoute("r1", "/v1/*", "group-a", 0)
	tbl := build(t, r)

	got, ok := tbl.Match(domain.MethodGET, "", "/v1/chat/completions")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
}

func TestTable_MethodPredicate(t *testing.T) {
	r := domain.NewRoute("r1", "/v1/*", "group-a", 0)
	r.Methods[domain.MethodPOST] = struct{}{}
	tbl := build(t, r)

	_, ok := tbl.Match(domain.MethodGET, "", "/v1/chat")
	assert.False(t, ok, "GET should not match a POST-only route")

	got, ok := tbl.Match(domain.MethodPOST, "", "/v1/chat")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
}

func TestTable_DisabledRouteNeverMatches(t *testing.T) {
	r := domain.NewRoute("r1", "/v1/*", "group-a", 0)
	r.Enabled = false
	tbl := build(t, r)

	_, ok := tbl.Match(domain.MethodGET, "", "/v1/chat")
	assert.False(t, ok)
}

func TestTable_HigherPriorityWins(t *testing.T) {
	low := domain.NewRoute("low", "/v1/*", "group-low", 1)
	high := domain.NewRoute("high", "/v1/*", "group-high", 10)
	tbl := build(t, low, high)

	got, ok := tbl.Match(domain.MethodGET, "", "/v1/chat")
	require.True(t, ok)
	assert.Equal(t, "high", got.ID)
}

func TestTable_LongestPrefixBreaksPriorityTie(t *testing.T) {
	broad := domain.NewRoute("broad", "/v1/*", "group-broad", 5)
	narrow := domain.NewRoute("narrow", "/v1/chat/*", "group-narrow", 5)
	tbl := build(t, broad, narrow)

	got, ok := tbl.Match(domain.MethodGET, "", "/v1/chat/completions")
	require.True(t, ok)
	assert.Equal(t, "narrow", got.ID, "longest literal prefix should win a priority tie")
}

func TestTable_LexicographicIDBreaksRemainingTie(t *testing.T) {
	b := domain.NewRoute("bravo", "/v1/chat", "group-b", 5)
	a := domain.NewRoute("alpha", "/v1/chat", "group-a", 5)
	tbl := build(t, b, a)

	got, ok := tbl.Match(domain.MethodGET, "", "/v1/chat")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.ID, "equal priority and prefix length breaks tie by route id")
}

func TestTable_HostPredicate(t *testing.T) {
	r := domain.NewRoute("r1", "/v1/*", "group-a", 0)
	r.HostPattern = "*.internal.example.com"
	tbl := build(t, r)

	_, ok := tbl.Match(domain.MethodGET, "api.example.com", "/v1/chat")
	assert.False(t, ok)

	got, ok := tbl.Match(domain.MethodGET, "api.internal.example.com", "/v1/chat")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
}

func TestTable_RoutesReturnsSortedOrder(t *testing.T) {
	low := domain.NewRoute("low", "/a", "group-a", 1)
	high := domain.NewRoute("high", "/b", "group-b", 10)
	tbl := build(t, low, high)

	routes := tbl.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "high", routes[0].ID)
	assert.Equal(t, "low", routes[1].ID)
}

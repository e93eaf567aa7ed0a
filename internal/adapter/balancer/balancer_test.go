package balancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func group(servers ...*domain.UpstreamServer) *domain.UpstreamGroup {
	return &domain.UpstreamGroup{ID: "g1", Servers: servers}
}

func server(id string, weight int) *domain.UpstreamServer {
	return &domain.UpstreamServer{ID: id, Host: "127.0.0.1", Port: 80, Protocol: domain.ProtocolHTTP, Weight: weight, Enabled: true}
}

func TestRoundRobin_CyclesInDeclaredOrder(t *testing.T) {
	g := group(server("a", 1), server("b", 1), server("c", 1))
	sel := NewRoundRobinSelector(nil)

	var got []string
	for i := 0; i < 6; i++ {
		s, err := sel.Select(context.Background(), g, "")
		require.NoError(t, err)
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestRoundRobin_NoHealthyServersErrors(t *testing.T) {
	g := group()
	sel := NewRoundRobinSelector(nil)
	_, err := sel.Select(context.Background(), g, "")
	assert.Error(t, err)
}

func TestWeightedRoundRobin_PicksEachServerProportionally(t *testing.T) {
	g := group(server("a", 3), server("b", 1))
	sel := NewWeightedRoundRobinSelector(nil)

	counts := map[string]int{}
	for i := 0; i < 8; i++ {
		s, err := sel.Select(context.Background(), g, "")
		require.NoError(t, err)
		counts[s.ID]++
	}
	// Over two full windows of Σw=4, "a" (w=3) should be picked 6 times
	// and "b" (w=1) twice.
	assert.Equal(t, 6, counts["a"])
	assert.Equal(t, 2, counts["b"])
}

func TestLeastConnections_PicksFewestInFlight(t *testing.T) {
	g := group(server("a", 1), server("b", 1))
	sel := NewLeastConnectionsSelector(nil)

	sel.RecordConnection("a", 3)
	sel.RecordConnection("b", 1)

	s, err := sel.Select(context.Background(), g, "")
	require.NoError(t, err)
	assert.Equal(t, "b", s.ID)

	sel.RecordConnection("b", 1)
	s, err = sel.Select(context.Background(), g, "")
	require.NoError(t, err)
	assert.Equal(t, "b", s.ID, "a(3) and b(2) still favour b")

	sel.RecordConnection("b", 10)
	s, err = sel.Select(context.Background(), g, "")
	require.NoError(t, err)
	assert.Equal(t, "a", s.ID)
}

func TestLeastConnections_DecrementNeverGoesNegative(t *testing.T) {
	sel := NewLeastConnectionsSelector(nil)
	sel.RecordConnection("a", -5)
	assert.Equal(t, int64(0), sel.ConnectionCount("a"))
}

func TestIPHash_StableForSameClientIP(t *testing.T) {
	g := group(server("a", 1), server("b", 1), server("c", 1))
	sel := NewIPHashSelector(nil)

	first, err := sel.Select(context.Background(), g, "203.0.113.7")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := sel.Select(context.Background(), g, "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestIPHash_DifferentClientsCanLandOnDifferentServers(t *testing.T) {
	g := group(server("a", 1), server("b", 1), server("c", 1))
	sel := NewIPHashSelector(nil)

	seen := map[string]bool{}
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}
	for _, ip := range ips {
		s, err := sel.Select(context.Background(), g, ip)
		require.NoError(t, err)
		seen[s.ID] = true
	}
	assert.Greater(t, len(seen), 1, "distinct client IPs should not all collide on one server")
}

func TestFactory_CreateKnownStrategies(t *testing.T) {
	f := NewFactory(nil)
	for _, name := range []string{StrategyRoundRobin, StrategyWeightedRoundRobin, StrategyLeastConnections, StrategyIPHash} {
		sel, err := f.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, sel.Name())
	}
}

func TestFactory_UnknownStrategyErrors(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.Create("nonexistent")
	assert.Error(t, err)
}

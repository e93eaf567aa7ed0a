package affinity

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func testGroupWithFailover(maxFailures int, window, cooldown time.Duration) *domain.UpstreamGroup {
	return &domain.UpstreamGroup{
		ID: "g1",
		Failover: &domain.FailoverSpec{
			MaxFailures:    maxFailures,
			WindowDuration: window,
			Cooldown:       cooldown,
		},
	}
}

func TestTracker_BindThenResolveReturnsBoundServer(t *testing.T) {
	tr := New()
	g := &domain.UpstreamGroup{ID: "g1", Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByCookie, CookieName: "sid"}}

	tr.Bind(g, "session-abc", "server-1")
	serverID, available, ok := tr.Resolve(g, "session-abc")
	require.True(t, ok)
	assert.True(t, available)
	assert.Equal(t, "server-1", serverID)
}

func TestTracker_ResolveMissingKeyReturnsNotFound(t *testing.T) {
	tr := New()
	g := &domain.UpstreamGroup{ID: "g1", Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByIP}}

	_, _, ok := tr.Resolve(g, "nope")
	assert.False(t, ok)
}

func TestTracker_MarksServerDownAfterMaxFailures(t *testing.T) {
	tr := New()
	g := testGroupWithFailover(3, time.Minute, time.Hour)

	assert.True(t, tr.Available(g, "server-1"))
	tr.RecordFailure(g, "server-1")
	tr.RecordFailure(g, "server-1")
	assert.True(t, tr.Available(g, "server-1"), "below threshold, still available")
	tr.RecordFailure(g, "server-1")
	assert.False(t, tr.Available(g, "server-1"), "threshold reached, marked down")
}

func TestTracker_AvailableAgainAfterCooldown(t *testing.T) {
	tr := New()
	g := testGroupWithFailover(1, time.Minute, 10*time.Millisecond)

	tr.RecordFailure(g, "server-1")
	assert.False(t, tr.Available(g, "server-1"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, tr.Available(g, "server-1"), "cooldown elapsed, eligible again")
}

func TestTracker_SweepGroupEvictsExpiredMappings(t *testing.T) {
	tr := New()
	g := &domain.UpstreamGroup{
		ID:       "g1",
		Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByIP, MaxAge: 10 * time.Millisecond},
	}

	tr.Bind(g, "10.0.0.1", "server-1")
	time.Sleep(20 * time.Millisecond)
	tr.SweepGroup(g, time.Now())

	_, _, ok := tr.Resolve(g, "10.0.0.1")
	assert.False(t, ok, "expired mapping should have been evicted")
}

func TestSelectionKey_CookieAffinityFallsBackWhenCookieAbsent(t *testing.T) {
	g := &domain.UpstreamGroup{Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByCookie, CookieName: "sid"}}
	req := newAffinityReq()

	assert.Equal(t, "", SelectionKey(g, req))
}

func TestSelectionKey_CookieAffinityExtractsNamedCookie(t *testing.T) {
	g := &domain.UpstreamGroup{Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByCookie, CookieName: "sid"}}
	req := newAffinityReq()
	req.Headers.Set("Cookie", "other=1; sid=abc123; third=x")

	assert.Equal(t, "abc123", SelectionKey(g, req))
}

func TestSelectionKey_IPAffinityUsesRemoteAddr(t *testing.T) {
	g := &domain.UpstreamGroup{Affinity: &domain.AffinitySpec{KeySource: domain.AffinityByIP}}
	req := newAffinityReq()
	req.RemoteAddr = "203.0.113.9:54321"

	assert.Equal(t, "203.0.113.9", SelectionKey(g, req))
}

func newAffinityReq() *domain.Request {
	u, _ := url.Parse("http://example.com/v1/chat")
	return domain.NewRequest(domain.MethodGET, u)
}

package health

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

type scriptedClient struct {
	mu      sync.Mutex
	status  int
	fail    bool
	calls   int
}

func (c *scriptedClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, context.DeadlineExceeded
	}
	return &http.Response{StatusCode: c.status, Body: http.NoBody}, nil
}

func (c *scriptedClient) setStatus(s int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	c.fail = false
}

func (c *scriptedClient) setFail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = true
}

func testGroup(interval time.Duration) *domain.UpstreamGroup {
	return &domain.UpstreamGroup{
		ID: "g1",
		Servers: []*domain.UpstreamServer{
			{ID: "s1", Host: "127.0.0.1", Port: 9999, Protocol: domain.ProtocolHTTP, Enabled: true},
		},
		HealthCheck: &domain.HealthCheckSpec{
			Path:           "/health",
			Interval:       interval,
			Timeout:        time.Second,
			ExpectedStatus: http.StatusOK,
			HealthyAfter:   2,
			UnhealthyAfter: 2,
		},
	}
}

func TestMonitor_UnknownServerIsNotHealthy(t *testing.T) {
	m := New(&scriptedClient{status: 200}, 2)
	assert.False(t, m.IsHealthy("s1"))
	_, ok := m.State("s1")
	assert.False(t, ok)
}

func TestMonitor_FirstPassFromUnknownGoesHealthy(t *testing.T) {
	client := &scriptedClient{status: 200}
	m := New(client, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx, []*domain.UpstreamGroup{testGroup(50 * time.Millisecond)}))
	defer m.Stop(context.Background())

	require.Eventually(t, func() bool {
		return m.IsHealthy("s1")
	}, time.Second, 10*time.Millisecond)
}

func TestMonitor_UnhealthyAfterConsecutiveFailures(t *testing.T) {
	client := &scriptedClient{status: 200}
	m := New(client, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx, []*domain.UpstreamGroup{testGroup(20 * time.Millisecond)}))
	defer m.Stop(context.Background())

	require.Eventually(t, func() bool { return m.IsHealthy("s1") }, time.Second, 10*time.Millisecond)

	client.setFail()
	require.Eventually(t, func() bool { return !m.IsHealthy("s1") }, 2*time.Second, 10*time.Millisecond)

	state, ok := m.State("s1")
	require.True(t, ok)
	assert.Equal(t, domain.HealthUnhealthy, state.State)
	assert.GreaterOrEqual(t, state.ConsecutiveFailures, 2)
}

func TestMonitor_RecordPassiveDoesNotChangeRoutability(t *testing.T) {
	client := &scriptedClient{status: 200}
	m := New(client, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx, []*domain.UpstreamGroup{testGroup(20 * time.Millisecond)}))
	defer m.Stop(context.Background())

	require.Eventually(t, func() bool { return m.IsHealthy("s1") }, time.Second, 10*time.Millisecond)

	m.RecordPassive("s1", domain.HealthCheckResult{Error: context.DeadlineExceeded})
	assert.True(t, m.IsHealthy("s1"), "passive feedback must not flip routability by itself")

	state, ok := m.State("s1")
	require.True(t, ok)
	assert.Error(t, state.LastError)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m := New(&scriptedClient{status: 200}, 1)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, nil))
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))
}

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func TestMemoryRateLimitStore_AllowsUpToLimitThenRejects(t *testing.T) {
	store := NewMemoryRateLimitStore(0)
	defer store.Stop()

	for i := 0; i < 3; i++ {
		d, err := store.Allow(context.Background(), "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed within burst", i)
	}

	d, err := store.Allow(context.Background(), "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryRateLimitStore_DistinctKeysHaveIndependentBudgets(t *testing.T) {
	store := NewMemoryRateLimitStore(0)
	defer store.Stop()

	for i := 0; i < 2; i++ {
		d, err := store.Allow(context.Background(), "a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := store.Allow(context.Background(), "b", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "key b's budget is independent of key a's")
}

func TestMemoryRateLimitStore_ResetClearsBucket(t *testing.T) {
	store := NewMemoryRateLimitStore(0)
	defer store.Stop()

	_, _ = store.Allow(context.Background(), "k", 1, time.Minute)
	d, _ := store.Allow(context.Background(), "k", 1, time.Minute)
	require.False(t, d.Allowed)

	require.NoError(t, store.Reset(context.Background(), "k"))
	d, err := store.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "after Reset the bucket should be fresh")
}

func TestRateLimit_ShortCircuitsWithTooManyRequestsWhenOverBudget(t *testing.T) {
	store := NewMemoryRateLimitStore(0)
	defer store.Stop()
	mw := NewRateLimit(store, KeyByClientIP, "", 1, time.Minute)

	req := newReq()
	req.RemoteAddr = "10.0.0.1:1234"

	calls := 0
	final := func(ctx context.Context, r *domain.Request) (*domain.Response, error) {
		calls++
		return domain.NewResponse(200, "OK"), nil
	}

	resp, err := mw.Handle(context.Background(), req, final)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	resp, err = mw.Handle(context.Background(), req, final)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, 1, calls, "final must not run once the budget is exhausted")
}

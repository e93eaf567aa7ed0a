package pool

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// pipeDialer hands out one end of a net.Pipe per dial, keeping the other
// end open (unread) so isAlive's zero-byte read times out rather than
// observing a close, matching a live upstream connection.
func pipeDialer(t *testing.T) (Dialer, *int32) {
	t.Helper()
	var dials int32
	d := func(ctx context.Context, key string) (net.Conn, error) {
		dials++
		client, server := net.Pipe()
		t.Cleanup(func() { server.Close() })
		return client, nil
	}
	return d, &dials
}

func TestPool_AcquireDialsUpToCap(t *testing.T) {
	dial, _ := pipeDialer(t)
	p := New(dial, Config{MaxPerKey: 2, AcquireWait: 50 * time.Millisecond})
	defer p.Shutdown(context.Background(), time.Second)

	c1, err := p.Acquire(context.Background(), "tcp://a:1")
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background(), "tcp://a:1")
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)

	stats := p.Stats()["tcp://a:1"]
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, 2, stats.InUse)

	_, err = p.Acquire(context.Background(), "tcp://a:1")
	assert.Error(t, err, "third acquire should time out at cap")
}

func TestPool_ReleaseReturnsToIdleAndBoundHolds(t *testing.T) {
	dial, _ := pipeDialer(t)
	p := New(dial, Config{MaxPerKey: 1})
	defer p.Shutdown(context.Background(), time.Second)

	key := "tcp://a:1"
	conn, err := p.Acquire(context.Background(), key)
	require.NoError(t, err)

	p.Release(conn)
	stats := p.Stats()[key]
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
	assert.LessOrEqual(t, stats.Idle+stats.InUse, 1)

	again, err := p.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID, "idle connection should be reused before dialing a new one")
}

func TestPool_DiscardFreesSlotWithoutReuse(t *testing.T) {
	dial, dials := pipeDialer(t)
	p := New(dial, Config{MaxPerKey: 1})
	defer p.Shutdown(context.Background(), time.Second)

	key := "tcp://a:1"
	conn, err := p.Acquire(context.Background(), key)
	require.NoError(t, err)
	p.Discard(conn)

	stats := p.Stats()[key]
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, 0, stats.InUse)

	_, err = p.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int32(2), *dials)
}

func TestPool_AcquireWaitsForRelease(t *testing.T) {
	dial, _ := pipeDialer(t)
	p := New(dial, Config{MaxPerKey: 1, AcquireWait: time.Second})
	defer p.Shutdown(context.Background(), time.Second)

	key := "tcp://a:1"
	conn, err := p.Acquire(context.Background(), key)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var second *domain.PooledConnection
	var secondErr error
	go func() {
		defer wg.Done()
		second, secondErr = p.Acquire(context.Background(), key)
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(conn)
	wg.Wait()

	require.NoError(t, secondErr)
	require.NotNil(t, second)
	assert.Equal(t, conn.ID, second.ID)
}

func TestPool_ShutdownClosesIdleAndFailsAcquire(t *testing.T) {
	dial, _ := pipeDialer(t)
	p := New(dial, Config{MaxPerKey: 2})

	key := "tcp://a:1"
	conn, err := p.Acquire(context.Background(), key)
	require.NoError(t, err)
	p.Release(conn)

	require.NoError(t, p.Shutdown(context.Background(), time.Second))

	_, err = p.Acquire(context.Background(), key)
	assert.Error(t, err)
}

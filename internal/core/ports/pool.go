package ports

import (
	"context"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// ConnectionPool is the C3 port: a keyed pool of persistent connections to
// upstream servers, keyed by domain.UpstreamServer.Key() (scheme://host:port).
type ConnectionPool interface {
	// Acquire returns an idle connection for key, dialing a new one if
	// none is idle and the pool is under its max-per-key limit; at
	// capacity it waits for a release, bounded by the pool's acquire wait
	// and by ctx, and returns an error if none comes.
	Acquire(ctx context.Context, key string) (*domain.PooledConnection, error)

	// Release returns a connection to the idle set for reuse.
	Release(conn *domain.PooledConnection)

	// Discard removes a connection from the pool permanently (used after
	// a protocol error or forced close) without returning it to idle.
	Discard(conn *domain.PooledConnection)

	// Stats reports current idle/in-use counts per key, for /health.
	Stats() map[string]PoolKeyStats

	// Shutdown closes every idle connection and prevents further Acquire
	// calls from succeeding, draining within the given timeout.
	Shutdown(ctx context.Context, timeout time.Duration) error
}

// PoolKeyStats is the idle/in-use snapshot for one pool key.
type PoolKeyStats struct {
	Idle  int
	InUse int
}

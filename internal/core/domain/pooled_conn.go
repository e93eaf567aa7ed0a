package domain

import (
	"net"
	"time"
)

// PooledConnection wraps a net.Conn with the bookkeeping the connection
// pool (C3) needs: creation/last-used timestamps, request count, and
// whether it's currently lent out. Invariant (spec.md §3): a connection is
// either idle in exactly one pool or in-use by exactly one request, never
// both — enforced by the pool, not by this struct.
type PooledConnection struct {
	CreatedAt    time.Time
	LastUsedAt   time.Time
	Conn         net.Conn
	ID           string
	UpstreamAddr string
	RequestCount int64
	InUse        bool
}

// Idle reports how long this connection has sat unused — used by the
// reaper to discard connections older than idleTimeout (spec.md §4.3).
func (p *PooledConnection) Idle(now time.Time) time.Duration {
	return now.Sub(p.LastUsedAt)
}

// MarkUsed bumps the request counter and refreshes LastUsedAt.
func (p *PooledConnection) MarkUsed(now time.Time) {
	p.RequestCount++
	p.LastUsedAt = now
}

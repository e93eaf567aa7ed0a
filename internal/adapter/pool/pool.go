// Package pool implements the C3 connection pool: a keyed set of idle
// TCP/TLS connections to upstream servers, bounded per key, with a
// background reaper and a peer-liveness check on acquire (spec.md §4.3).
package pool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

const (
	// DefaultMaxPerKey mirrors the teacher's DefaultMaxIdleConns for a
	// single-host pool, scaled down because this cap is per upstream key
	// rather than process-wide.
	DefaultMaxPerKey    = 32
	DefaultIdleTimeout  = 90 * time.Second
	DefaultAcquireWait  = 5 * time.Second
	DefaultReapInterval = 30 * time.Second
)

// Dialer opens a new connection for a pool key. Production callers pass a
// *net.Dialer or a TLS dialer; tests pass a fake that returns net.Pipe ends.
type Dialer func(ctx context.Context, key string) (net.Conn, error)

// Config tunes pool behaviour; zero values fall back to the defaults above.
type Config struct {
	MaxPerKey    int
	IdleTimeout  time.Duration
	AcquireWait  time.Duration
	ReapInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPerKey <= 0 {
		c.MaxPerKey = DefaultMaxPerKey
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.AcquireWait <= 0 {
		c.AcquireWait = DefaultAcquireWait
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
	return c
}

type keyState struct {
	idle  []*domain.PooledConnection
	inUse int
	// waiters are released in FIFO order when a slot frees up, one shot
	// channels closed by release/discard.
	waiters []chan struct{}
}

// Pool is the default ports.ConnectionPool implementation.
type Pool struct {
	dial     Dialer
	cfg      Config
	mu       sync.Mutex
	keys     map[string]*keyState
	closed   bool
	stopReap chan struct{}
	reapDone chan struct{}
	nextID   uint64
}

var _ ports.ConnectionPool = (*Pool)(nil)

// New creates a pool and starts its background reaper.
func New(dial Dialer, cfg Config) *Pool {
	p := &Pool{
		dial:     dial,
		cfg:      cfg.withDefaults(),
		keys:     make(map[string]*keyState),
		stopReap: make(chan struct{}),
		reapDone: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

func (p *Pool) stateFor(key string) *keyState {
	ks, ok := p.keys[key]
	if !ok {
		ks = &keyState{}
		p.keys[key] = ks
	}
	return ks
}

// Acquire returns an idle, live connection for key, dialing a new one if
// the pool is under cap, or waiting up to cfg.AcquireWait for a release
// otherwise. If no slot frees within that wait, or ctx ends first, it
// returns an error.
func (p *Pool) Acquire(ctx context.Context, key string) (*domain.PooledConnection, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, domain.NewGatewayError(domain.KindPoolShutdown, "", "", "", key, fmt.Errorf("pool: shut down"))
		}
		ks := p.stateFor(key)

		for len(ks.idle) > 0 {
			conn := ks.idle[len(ks.idle)-1]
			ks.idle = ks.idle[:len(ks.idle)-1]
			if !isAlive(conn.Conn) {
				_ = conn.Conn.Close()
				continue
			}
			ks.inUse++
			conn.InUse = true
			p.mu.Unlock()
			return conn, nil
		}

		if ks.inUse+len(ks.idle) < p.cfg.MaxPerKey {
			ks.inUse++
			p.nextID++
			id := p.nextID
			p.mu.Unlock()

			conn, err := p.dial(ctx, key)
			if err != nil {
				p.mu.Lock()
				ks.inUse--
				p.notifyOneLocked(ks)
				p.mu.Unlock()
				return nil, domain.NewGatewayError(domain.KindUpstreamConnectFailure, "", "", "", key, err)
			}
			now := time.Now()
			return &domain.PooledConnection{
				ID:           fmt.Sprintf("%s-%d", key, id),
				UpstreamAddr: key,
				Conn:         conn,
				CreatedAt:    now,
				LastUsedAt:   now,
				InUse:        true,
			}, nil
		}

		wait := make(chan struct{})
		ks.waiters = append(ks.waiters, wait)
		p.mu.Unlock()

		acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireWait)
		select {
		case <-wait:
			cancel()
			// loop around: a slot or idle connection may now be available
		case <-acquireCtx.Done():
			cancel()
			return nil, fmt.Errorf("pool: acquire timed out for key %s: %w", key, acquireCtx.Err())
		}
	}
}

// Release returns conn to the idle set, refreshing its last-used time, and
// wakes one waiter for its key.
func (p *Pool) Release(conn *domain.PooledConnection) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ks, ok := p.keys[conn.UpstreamAddr]
	if !ok {
		_ = conn.Conn.Close()
		return
	}
	ks.inUse--
	conn.InUse = false
	conn.MarkUsed(time.Now())

	if p.closed {
		_ = conn.Conn.Close()
		return
	}
	ks.idle = append(ks.idle, conn)
	p.notifyOneLocked(ks)
}

// Discard closes conn and removes it from the pool permanently, freeing its
// in-use slot for a waiter.
func (p *Pool) Discard(conn *domain.PooledConnection) {
	if conn == nil {
		return
	}
	_ = conn.Conn.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	ks, ok := p.keys[conn.UpstreamAddr]
	if !ok {
		return
	}
	ks.inUse--
	p.notifyOneLocked(ks)
}

func (p *Pool) notifyOneLocked(ks *keyState) {
	if len(ks.waiters) == 0 {
		return
	}
	w := ks.waiters[0]
	ks.waiters = ks.waiters[1:]
	close(w)
}

// Stats reports the idle/in-use snapshot for every key with activity.
func (p *Pool) Stats() map[string]ports.PoolKeyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]ports.PoolKeyStats, len(p.keys))
	for key, ks := range p.keys {
		out[key] = ports.PoolKeyStats{Idle: len(ks.idle), InUse: ks.inUse}
	}
	return out
}

// Shutdown stops the reaper, closes every idle connection, and fails any
// further Acquire calls. It waits up to timeout for the reaper goroutine to
// exit before returning.
func (p *Pool) Shutdown(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, ks := range p.keys {
		for _, conn := range ks.idle {
			_ = conn.Conn.Close()
		}
		ks.idle = nil
		for _, w := range ks.waiters {
			close(w)
		}
		ks.waiters = nil
	}
	p.mu.Unlock()

	close(p.stopReap)

	deadline := timeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < deadline {
			deadline = remaining
		}
	}
	select {
	case <-p.reapDone:
		return nil
	case <-time.After(deadline):
		return fmt.Errorf("pool: shutdown did not complete within %s", deadline)
	}
}

func (p *Pool) reapLoop() {
	defer close(p.reapDone)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopReap:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ks := range p.keys {
		kept := ks.idle[:0]
		for _, conn := range ks.idle {
			if conn.Idle(now) >= p.cfg.IdleTimeout {
				_ = conn.Conn.Close()
				continue
			}
			kept = append(kept, conn)
		}
		ks.idle = kept
	}
}

// isAlive performs the peer-liveness check spec.md §4.3 requires: a
// one-byte read under a 1ms deadline, where a timeout means the idle
// connection is still open and a close or unexpected data means it is not.
func isAlive(conn net.Conn) bool {
	if sc, ok := conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = sc.SetReadDeadline(time.Now().Add(time.Millisecond))
		defer sc.SetReadDeadline(time.Time{})
	}
	one := make([]byte, 1)
	n, err := conn.Read(one)
	if n > 0 {
		// Data arrived unexpectedly on an idle connection; the peer is
		// violating keep-alive framing, treat it as unusable.
		return false
	}
	if err == nil {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

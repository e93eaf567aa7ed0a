package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/brightloom/gatewire/internal/core/ports"
)

// MemoryRateLimitStore is the shipped ports.RateLimitStore: one
// golang.org/x/time/rate.Limiter per key, generalised from the teacher's
// process-global sync.Map of per-IP limiters (request_rate_limit.go) into
// a pluggable store keyed by whatever identifier the route config selects
// (spec.md §4.16), with a periodic sweep of keys idle past sweepAfter.
type MemoryRateLimitStore struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	sweepAfter time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	limiter    *rate.Limiter
	limit      int
	lastAccess time.Time
}

var _ ports.RateLimitStore = (*MemoryRateLimitStore)(nil)

const defaultSweepInterval = time.Minute

// NewMemoryRateLimitStore starts a background sweep goroutine that evicts
// buckets idle for longer than sweepAfter; a zero sweepAfter disables
// eviction entirely.
func NewMemoryRateLimitStore(sweepAfter time.Duration) *MemoryRateLimitStore {
	s := &MemoryRateLimitStore{
		buckets:    make(map[string]*bucket),
		sweepAfter: sweepAfter,
		stop:       make(chan struct{}),
	}
	if sweepAfter > 0 {
		go s.sweepLoop()
	}
	return s
}

func (s *MemoryRateLimitStore) sweepLoop() {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryRateLimitStore) sweep() {
	cutoff := time.Now().Add(-s.sweepAfter)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}

// Allow consumes one token from key's bucket, creating the bucket with a
// burst equal to limit on first use (one limit per window per key; a
// limit/window pair that changes for an existing key does not reset it,
// matching the teacher's per-IP limiter which is created once and reused).
func (s *MemoryRateLimitStore) Allow(_ context.Context, key string, limit int, window time.Duration) (ports.RateLimitDecision, error) {
	now := time.Now()
	if limit <= 0 {
		return ports.RateLimitDecision{Allowed: true, ResetAt: now.Add(window)}, nil
	}

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		ratePerSec := rate.Limit(float64(limit) / window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(ratePerSec, limit), limit: limit}
		s.buckets[key] = b
	}
	b.lastAccess = now
	limiter := b.limiter
	s.mu.Unlock()

	reservation := limiter.Reserve()
	if !reservation.OK() {
		return ports.RateLimitDecision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: window,
			ResetAt:    now.Add(window),
		}, nil
	}

	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return ports.RateLimitDecision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: delay,
			ResetAt:    now.Add(delay),
		}, nil
	}

	return ports.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: int(limiter.Tokens()),
		ResetAt:   now.Add(window),
	}, nil
}

func (s *MemoryRateLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Stop halts the sweep goroutine; idempotent.
func (s *MemoryRateLimitStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Package bufferpool implements the C16 size-classed buffer pool (spec.md
// §4.14): a bounded free list per power-of-two size class from 1K to 64K,
// with a fresh, untracked allocation above the largest class.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// classSizes are the size classes spec.md §4.14 names, smallest first.
var classSizes = [...]int{1 << 10, 2 << 10, 4 << 10, 8 << 10, 16 << 10, 32 << 10, 64 << 10}

// DefaultPerClassCap bounds how many idle buffers one size class retains;
// a Release beyond the cap drops the buffer instead of growing the list
// unboundedly, the same bounded-idle-list discipline
// internal/adapter/pool.Pool applies per upstream key (spec.md §4.3),
// applied here per size class instead of per upstream.
const DefaultPerClassCap = 64

type class struct {
	size int
	cap  int

	mu   sync.Mutex
	idle [][]byte

	hits   atomic.Int64
	misses atomic.Int64
	inUse  atomic.Int64
}

func (c *class) acquire(n int) []byte {
	c.mu.Lock()
	if l := len(c.idle); l > 0 {
		buf := c.idle[l-1]
		c.idle = c.idle[:l-1]
		c.mu.Unlock()
		c.hits.Add(1)
		c.inUse.Add(1)
		return buf[:n]
	}
	c.mu.Unlock()

	c.misses.Add(1)
	c.inUse.Add(1)
	return make([]byte, n, c.size)
}

func (c *class) release(b []byte) {
	c.inUse.Add(-1)

	buf := b[:cap(b)]
	for i := range buf {
		buf[i] = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.idle) >= c.cap {
		return
	}
	c.idle = append(c.idle, buf)
}

// Pool is the shipped buffer pool: Acquire(n) returns a []byte of at least
// n bytes from the smallest class that fits, or a fresh unpooled slice
// above the largest class; Release(b) zeroes and returns a buffer to its
// class if the class's idle list isn't already full, or drops it
// otherwise (spec.md §4.14).
type Pool struct {
	classes  [len(classSizes)]*class
	oversize atomic.Int64
}

// New builds a Pool with DefaultPerClassCap idle slots per size class.
func New() *Pool {
	return NewWithCap(DefaultPerClassCap)
}

// NewWithCap builds a Pool whose per-class idle list holds up to perClassCap
// buffers.
func NewWithCap(perClassCap int) *Pool {
	p := &Pool{}
	for i, size := range classSizes {
		p.classes[i] = &class{size: size, cap: perClassCap}
	}
	return p
}

func (p *Pool) classFor(n int) *class {
	for _, c := range p.classes {
		if c.size >= n {
			return c
		}
	}
	return nil
}

// Acquire returns a buffer of exactly n bytes, drawn from the smallest
// class that can hold it.
func (p *Pool) Acquire(n int) []byte {
	c := p.classFor(n)
	if c == nil {
		p.oversize.Add(1)
		return make([]byte, n)
	}
	return c.acquire(n)
}

// Release returns b to the class matching its capacity; b is dropped (left
// for the GC) if its capacity doesn't match any tracked class, which is
// always true of an oversize Acquire's result.
func (p *Pool) Release(b []byte) {
	bufCap := cap(b)
	for _, c := range p.classes {
		if c.size == bufCap {
			c.release(b)
			return
		}
	}
}

// ClassStats reports one size class's counters for the /metrics endpoint.
type ClassStats struct {
	Size   int
	Hits   int64
	Misses int64
	InUse  int64
}

// Stats reports per-class hit/miss/in-use counters plus the count of
// allocations that exceeded every class (spec.md §4.14: "Statistics: hits,
// misses, in-use, per-class counts").
type Stats struct {
	Classes  []ClassStats
	Oversize int64
}

func (p *Pool) Stats() Stats {
	stats := Stats{Classes: make([]ClassStats, len(p.classes)), Oversize: p.oversize.Load()}
	for i, c := range p.classes {
		stats.Classes[i] = ClassStats{
			Size:   c.size,
			Hits:   c.hits.Load(),
			Misses: c.misses.Load(),
			InUse:  c.inUse.Load(),
		}
	}
	return stats
}

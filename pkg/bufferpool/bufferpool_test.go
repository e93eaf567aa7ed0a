package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_AcquireRoundsUpToClass(t *testing.T) {
	p := New()
	b := p.Acquire(100)
	assert.Len(t, b, 100)
	assert.Equal(t, 1<<10, cap(b))
}

func TestPool_ReleaseThenAcquireIsAHit(t *testing.T) {
	p := New()
	b := p.Acquire(500)
	p.Release(b)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Classes[0].Misses)

	b2 := p.Acquire(500)
	assert.Len(t, b2, 500)

	stats = p.Stats()
	assert.Equal(t, int64(1), stats.Classes[0].Hits)
	assert.Equal(t, int64(1), stats.Classes[0].InUse)
}

func TestPool_ReleaseZeroesContents(t *testing.T) {
	p := New()
	b := p.Acquire(16)
	for i := range b {
		b[i] = 0xFF
	}
	p.Release(b)

	b2 := p.Acquire(16)
	for _, v := range b2 {
		assert.Equal(t, byte(0), v)
	}
}

func TestPool_OversizeAllocationBypassesClasses(t *testing.T) {
	p := New()
	b := p.Acquire(1 << 20)
	assert.Len(t, b, 1<<20)
	assert.Equal(t, int64(1), p.Stats().Oversize)

	p.Release(b) // no matching class; dropped silently, must not panic
}

func TestPool_ReleaseBeyondCapDropsBuffer(t *testing.T) {
	p := NewWithCap(1)
	b1 := p.Acquire(10)
	b2 := p.Acquire(10)

	p.Release(b1)
	p.Release(b2) // idle list already has one slot filled; this one is dropped

	stats := p.Stats()
	assert.LessOrEqual(t, len(p.classes[0].idle), 1)
	assert.Equal(t, int64(0), stats.Classes[0].InUse)
}

// Package buffers implements the fixed-size block allocator the cache draws
// its block buffers from. It is a slab of peercache.BlockSize-sized slots
// tracked by a bitmap, handed out next-fit: each scan for a free slot resumes
// just after the slot allocated last.
package buffers

import (
	"sync"

	"github.com/boljen/go-bitmap"
	"github.com/rkennedy/peercache"
)

// Pool is a fixed-capacity slab allocator for peercache.BlockSize buffers.
// It implements peercache.BufferPool.
type Pool struct {
	mu       sync.Mutex
	slots    bitmap.Bitmap
	slab     []byte
	capacity int
	inUse    int
	lastHint int
}

// New creates a Pool able to hand out up to `capacity` buffers of
// peercache.BlockSize bytes each.
func New(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool{
		slots:    bitmap.New(capacity),
		slab:     make([]byte, capacity*peercache.BlockSize),
		capacity: capacity,
	}
}

// AllocateBuffer returns a fresh, zeroed peercache.BlockSize buffer, or nil
// if the pool is exhausted. `tag` is accepted for parity with the external
// interface (spec section 6); this implementation doesn't use it for
// anything beyond being a future debugging aid.
func (p *Pool) AllocateBuffer(tag string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.capacity; i++ {
		idx := (p.lastHint + i) % p.capacity
		if !p.slots.Get(idx) {
			p.slots.Set(idx, true)
			p.inUse++
			p.lastHint = idx + 1
			start := idx * peercache.BlockSize
			buf := p.slab[start : start+peercache.BlockSize]
			clear(buf)
			return buf
		}
	}
	return nil
}

// FreeBuffer returns a single buffer to the pool.
func (p *Pool) FreeBuffer(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeLocked(buf)
}

// FreeMultipleBuffers returns several buffers at once. Batched frees are
// preferred by callers over single frees where possible, per spec section 5,
// to amortize lock overhead.
func (p *Pool) FreeMultipleBuffers(bufs [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, buf := range bufs {
		p.freeLocked(buf)
	}
}

func (p *Pool) freeLocked(buf []byte) {
	if len(buf) == 0 || p.capacity == 0 {
		return
	}
	idx := p.slotOf(buf)
	if idx < 0 || !p.slots.Get(idx) {
		return
	}
	p.slots.Set(idx, false)
	p.inUse--
}

// slotOf finds which slab slot backs buf, identified by comparing the
// address of its first byte against each slot's address. Returns -1 if buf
// wasn't handed out by this pool.
func (p *Pool) slotOf(buf []byte) int {
	want := &buf[0]
	for i := 0; i < p.capacity; i++ {
		start := i * peercache.BlockSize
		if &p.slab[start] == want {
			return i
		}
	}
	return -1
}

// InUse returns the number of buffers currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Capacity returns the maximum number of buffers this pool can hand out.
func (p *Pool) Capacity() int {
	return p.capacity
}

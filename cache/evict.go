package cache

import "github.com/rkennedy/peercache/pieceindex"

// Evict reclaims up to num blocks, walking the LRU index oldest-first (spec
// section 4.6). ignore, if non-nil, is never evicted from. priority
// currently only ever reaches here as a hint; it does not change victim
// selection (spec section 4.6 / design note in section 9).
func (c *Cache) Evict(num int, priority Priority, ignore *pieceindex.Entry) int {
	_ = priority

	var bufs [][]byte

	for _, e := range c.index.OldestFirst() {
		if num <= 0 {
			break
		}
		if e == ignore {
			continue
		}
		if allDirty(e) {
			// Write-back must flush first; the cache cannot evict dirty
			// data here.
			continue
		}

		for i := range e.Blocks {
			if num <= 0 {
				break
			}
			if !isEvictable(e, i) {
				continue
			}
			if buf := c.releaseBlock(e, i); buf != nil {
				bufs = append(bufs, buf)
			}
			num--
		}

		c.eraseIfEmpty(e)
	}

	if len(bufs) > 0 {
		c.pool.FreeMultipleBuffers(bufs)
	}

	return num
}

// allDirty reports whether every resident block of e is dirty, meaning the
// piece has nothing evictable (it must be flushed first).
func allDirty(e *pieceindex.Entry) bool {
	if e.NumBlocks == 0 {
		return false
	}
	for i := range e.Blocks {
		if e.Blocks[i].Buffer != nil && !e.Blocks[i].Dirty {
			return false
		}
	}
	return true
}

package cache

import "github.com/rkennedy/peercache/pieceindex"

// releaseBlock frees block i of e, returning its buffer (nil if the block
// had none) and keeping NumBlocks/NumDirty and the cache's size counters
// consistent by kind (read vs. write cache), per spec section 4.9 ("Free
// piece ... updating counters by kind"). Callers are responsible for
// ensuring the block's refcount is 0 first.
func (c *Cache) releaseBlock(e *pieceindex.Entry, i int) []byte {
	b := &e.Blocks[i]
	buf := b.Buffer
	if buf == nil {
		return nil
	}

	if b.Dirty {
		e.SetBlockDirty(i, false)
		c.writeCacheSize--
	} else {
		c.readCacheSize--
	}

	e.SetBlockPresent(i, nil)
	c.cacheSize--

	b.Pending = false
	b.Uninitialized = false
	return buf
}

// isEvictable reports whether block i can be reclaimed right now: resident,
// clean, fully initialized, not pending, and unpinned.
func isEvictable(e *pieceindex.Entry, i int) bool {
	b := &e.Blocks[i]
	return b.Buffer != nil && !b.Dirty && !b.Uninitialized && !b.Pending && b.Refcount == 0
}

package cache

import (
	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/pieceindex"
)

// AllocatePending prepares [begin, end) of the piece identified by job for a
// storage read, marking freshly allocated slots uninitialized and pinning
// them so eviction can't touch them while the disk worker fills them in
// (spec section 4.4). It returns the count of freshly allocated blocks, or
// one of peercache.ResultOutOfCacheSpace / peercache.ResultOutOfMemory.
func (c *Cache) AllocatePending(
	storage peercache.Storage,
	begin, end peercache.BlockIndex,
	priority Priority,
	job *peercache.Job,
) int {
	e := c.findOrCreate(storage, job.Piece)
	count := int(end - begin)

	if c.cacheSize+count > c.maxSize {
		c.Evict(c.cacheSize+count-c.maxSize, priority, e)
		if c.cacheSize+count > c.maxSize {
			return int(peercache.ResultOutOfCacheSpace)
		}
	}

	var allocated []int
	rollback := func() {
		var bufs [][]byte
		for _, i := range allocated {
			b := &e.Blocks[i]
			b.Refcount--
			e.Refcount--
			buf := b.Buffer
			b.Pending = false
			b.Uninitialized = false
			e.SetBlockPresent(i, nil)
			c.readCacheSize--
			c.cacheSize--
			if buf != nil {
				bufs = append(bufs, buf)
			}
		}
		if len(bufs) > 0 {
			c.pool.FreeMultipleBuffers(bufs)
		}
		c.eraseIfEmpty(e)
	}

	for i := int(begin); i < int(end); i++ {
		if i >= len(e.Blocks) {
			continue
		}
		b := &e.Blocks[i]
		if b.Buffer != nil || b.Pending {
			continue
		}

		buf := c.pool.AllocateBuffer("pending-read")
		if buf == nil {
			rollback()
			return int(peercache.ResultOutOfMemory)
		}

		e.SetBlockPresent(i, buf)
		b.Uninitialized = true
		b.Pending = true
		b.Refcount++
		e.Refcount++
		c.readCacheSize++
		c.cacheSize++
		allocated = append(allocated, i)
	}

	e.Jobs.Append(job)
	e.MarkedForDeletion = false

	return len(allocated)
}

// BeginFlush marks an already-dirty range [begin, end) pending ahead of a
// deferred write-back, taking the same block/piece refcount AllocatePending
// takes for reads. The cache never issues the flush itself (spec section
// 4.3); this is the hook the outer flush pass uses to pin the range while
// storage I/O is in flight, so MarkAsDone's completion handling (section
// 4.5) applies uniformly to both directions.
func (c *Cache) BeginFlush(e *pieceindex.Entry, begin, end peercache.BlockIndex) peercache.Result {
	for i := int(begin); i < int(end) && i < len(e.Blocks); i++ {
		b := &e.Blocks[i]
		if b.Buffer == nil || !b.Dirty || b.Pending {
			continue
		}
		b.Pending = true
		b.Refcount++
		e.Refcount++
	}
	return peercache.ResultOK
}

// MarkAsDone delivers a storage I/O completion for [begin, end) of piece e
// (spec section 4.5). On err != nil, affected blocks are discarded; on
// success, read-fills stay resident-clean and write-flushes transition
// dirty -> clean. Jobs whose gating clears are resolved and posted on exec.
func (c *Cache) MarkAsDone(
	e *pieceindex.Entry,
	begin, end peercache.BlockIndex,
	exec peercache.Executor,
	err error,
) {
	var bufs [][]byte
	for i := int(begin); i < int(end) && i < len(e.Blocks); i++ {
		b := &e.Blocks[i]
		if !b.Pending {
			continue
		}

		b.Refcount--
		e.Refcount--
		if b.Refcount > 0 {
			// Another I/O still holds this block; leave it pending for that
			// one to clear.
			continue
		}
		b.Pending = false
		b.Uninitialized = false

		if err != nil {
			if buf := c.releaseBlock(e, i); buf != nil {
				bufs = append(bufs, buf)
			}
			continue
		}

		if b.Dirty {
			e.SetBlockDirty(i, false)
			c.writeCacheSize--
			c.readCacheSize++
		}
	}
	if len(bufs) > 0 {
		c.pool.FreeMultipleBuffers(bufs)
	}

	c.dispatchGatedJobs(e, exec, err)
	c.reapAfterDrain(e)
}

func (c *Cache) reapAfterDrain(e *pieceindex.Entry) {
	c.eraseIfEmpty(e)

	if e.Jobs.Empty() && e.StorageHandle.HasFence() {
		stillPending := false
		for _, other := range c.index.PiecesForStorage(e.Storage) {
			if !other.Jobs.Empty() {
				stillPending = true
				break
			}
		}
		if !stillPending {
			e.StorageHandle.LowerFence()
		}
	}

	if e.MarkedForDeletion && e.Refcount == 0 {
		c.freePieceLocked(e)
		c.index.Remove(e)
	}
}

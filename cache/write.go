package cache

import "github.com/rkennedy/peercache"

// AddDirtyBlock installs job's owned buffer as a dirty block (spec section
// 4.3). offset must be block-aligned. The buffer is not yet durable; a later
// flush pass outside the cache persists it to storage.
func (c *Cache) AddDirtyBlock(job *peercache.Job) peercache.Result {
	storage := job.Storage
	blockIndex := int(job.Offset) / peercache.BlockSize

	e := c.findOrCreate(storage, job.Piece)
	if blockIndex >= len(e.Blocks) {
		return peercache.ResultOutOfMemory
	}
	b := &e.Blocks[blockIndex]
	if b.Buffer != nil || b.Dirty || b.Pending {
		return peercache.ResultOutOfMemory
	}

	if c.cacheSize+1 > c.maxSize {
		c.Evict(c.cacheSize+1-c.maxSize, PriorityWrite, e)
		if c.cacheSize+1 > c.maxSize {
			return peercache.ResultOutOfCacheSpace
		}
	}

	e.SetBlockPresent(blockIndex, job.Buffer)
	e.SetBlockDirty(blockIndex, true)
	c.writeCacheSize++
	c.cacheSize++

	e.Jobs.Append(job)
	job.Buffer = nil

	c.touchExpire(e, c.cacheMinTime(job))
	e.MarkedForDeletion = false

	return peercache.ResultOK
}

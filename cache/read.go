package cache

import (
	"github.com/noxer/bytewriter"
	"github.com/rkennedy/peercache"
)

// TryRead attempts to serve job from cached blocks without going to storage
// (spec section 4.2). It returns the byte count on a hit, or one of
// peercache.ResultNotCached / peercache.ResultOutOfMemory on a miss.
func (c *Cache) TryRead(job *peercache.Job) int {
	c.blocksRead++

	storage := job.Storage
	e := c.index.Find(storage.ID(), job.Piece)
	if e == nil {
		return int(peercache.ResultNotCached)
	}

	const blockSize = peercache.BlockSize
	firstBlock := int(job.Offset) / blockSize
	firstOffset := int(job.Offset) % blockSize
	length := int(job.BufferSize)
	secondBlock := firstBlock + 1

	// Edge policy (spec section 4.2): an unaligned read needs two adjacent
	// blocks; both must be resident and non-pending, or this is a miss.
	needsSecond := firstOffset != 0
	if firstBlock >= len(e.Blocks) || !e.IsPresent(firstBlock) || e.Blocks[firstBlock].Pending {
		return int(peercache.ResultNotCached)
	}
	if needsSecond && (secondBlock >= len(e.Blocks) || !e.IsPresent(secondBlock) || e.Blocks[secondBlock].Pending) {
		return int(peercache.ResultNotCached)
	}

	dest := c.pool.AllocateBuffer("read-hit")
	if dest == nil {
		return int(peercache.ResultOutOfMemory)
	}
	dest = dest[:length]

	w := bytewriter.New(dest)
	firstTake := blockSize - firstOffset
	if firstTake > length {
		firstTake = length
	}
	firstBuf := e.Blocks[firstBlock].Buffer
	w.Write(firstBuf[firstOffset : firstOffset+firstTake])
	if firstTake < length {
		secondBuf := e.Blocks[secondBlock].Buffer
		w.Write(secondBuf[:length-firstTake])
	}

	job.Buffer = dest
	c.touchExpire(e, c.cacheMinTime(job))
	c.blocksReadHit++
	return length
}

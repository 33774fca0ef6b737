package cache

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/pieceindex"
)

// MarkForDeletion frees every clean, unreferenced block of e immediately and
// sets MarkedForDeletion (spec section 4.7). If refcount is then zero, e is
// removed from the index outright; otherwise its shell is retained so
// in-flight I/O can complete safely, and MarkAsDone's reap path (section 4.5)
// finishes the job later.
func (c *Cache) MarkForDeletion(e *pieceindex.Entry) {
	var bufs [][]byte
	for i := range e.Blocks {
		if isEvictable(e, i) {
			if buf := c.releaseBlock(e, i); buf != nil {
				bufs = append(bufs, buf)
			}
		}
	}
	if len(bufs) > 0 {
		c.pool.FreeMultipleBuffers(bufs)
	}
	e.MarkedForDeletion = true
	c.eraseIfEmpty(e)
	if e.Refcount == 0 {
		c.index.Remove(e)
	}
}

// AbortDirty releases every dirty, unreferenced block of e and fails every
// queued write job with ResultOperationAborted (spec section 4.8). Non-write
// jobs are left queued.
func (c *Cache) AbortDirty(e *pieceindex.Entry, exec peercache.Executor) {
	var bufs [][]byte
	for i := range e.Blocks {
		b := &e.Blocks[i]
		if b.Buffer == nil || !b.Dirty || b.Refcount != 0 {
			continue
		}
		if buf := c.releaseBlock(e, i); buf != nil {
			bufs = append(bufs, buf)
		}
	}
	if len(bufs) > 0 {
		c.pool.FreeMultipleBuffers(bufs)
	}

	e.Jobs.Each(func(job *peercache.Job) bool {
		if job.Action != peercache.ActionWrite {
			return false
		}
		job.Err = int(peercache.ResultOperationAborted)
		if exec != nil {
			exec.Post(job.Err, job)
		}
		return true
	})

	c.eraseIfEmpty(e)
}

// freePieceLocked releases every resident buffer of e, batching the buffers
// back to the pool in one call rather than freeing them one at a time (spec
// section 5's stated preference for batched returns). Precondition: e.Refcount
// == 0 (spec section 4.9).
func (c *Cache) freePieceLocked(e *pieceindex.Entry) {
	var bufs [][]byte
	for i := range e.Blocks {
		buf := e.Blocks[i].Buffer
		if buf == nil {
			continue
		}
		if e.Blocks[i].Dirty {
			e.SetBlockDirty(i, false)
			c.writeCacheSize--
		} else {
			c.readCacheSize--
		}
		e.SetBlockPresent(i, nil)
		e.Blocks[i].Pending = false
		e.Blocks[i].Uninitialized = false
		c.cacheSize--
		bufs = append(bufs, buf)
	}
	if len(bufs) > 0 {
		c.pool.FreeMultipleBuffers(bufs)
	}
}

// FreePiece is the exported form of section 4.9's free-piece operation, for
// callers (shutdown, deletion reap) that don't already hold e via an internal
// path. Precondition: e.Refcount == 0.
func (c *Cache) FreePiece(e *pieceindex.Entry) {
	c.freePieceLocked(e)
	c.index.Remove(e)
}

// DrainPieceBuffers moves every resident buffer of e into dest, clearing
// counters per block exactly as FreePiece does, but without returning the
// buffers to the pool (spec section 4.10): ownership passes to the caller,
// used by teardown and by move-to-storage transfer. Returns the number of
// blocks drained.
func (c *Cache) DrainPieceBuffers(e *pieceindex.Entry, dest *[][]byte) int {
	drained := 0
	for i := range e.Blocks {
		if e.Blocks[i].Buffer == nil {
			continue
		}
		buf := c.releaseBlock(e, i)
		*dest = append(*dest, buf)
		drained++
	}
	return drained
}

// DrainStorage tears down every piece belonging to storage, used when a
// storage is removed from the session entirely. It aggregates per-piece
// failures with go-multierror rather than stopping at the first one, so a
// single stuck piece doesn't block teardown of the rest.
func (c *Cache) DrainStorage(storage peercache.StorageID) error {
	var result *multierror.Error
	for _, e := range c.index.PiecesForStorage(storage) {
		if e.Refcount != 0 {
			result = multierror.Append(result, &pinnedPieceError{Piece: e.Piece})
			continue
		}
		c.FreePiece(e)
	}
	return result.ErrorOrNil()
}

// pinnedPieceError reports a piece that DrainStorage could not tear down
// because in-flight I/O still held a reference to it.
type pinnedPieceError struct {
	Piece peercache.PieceIndex
}

func (e *pinnedPieceError) Error() string {
	return fmt.Sprintf("piece %d still pinned by in-flight I/O", e.Piece)
}

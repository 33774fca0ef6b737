package cache

import (
	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/hashcheck"
	"github.com/rkennedy/peercache/pieceindex"
)

// jobRangeBlocks returns the [first, last] block indices (inclusive) job's
// byte range touches.
func jobRangeBlocks(job *peercache.Job) (first, last int) {
	first = int(job.Offset) / peercache.BlockSize
	end := int(job.Offset) + int(job.BufferSize)
	if end == 0 {
		return first, first
	}
	last = (end - 1) / peercache.BlockSize
	return first, last
}

func rangeStillPending(e *pieceindex.Entry, job *peercache.Job) bool {
	first, last := jobRangeBlocks(job)
	for i := first; i <= last; i++ {
		if i < len(e.Blocks) && e.Blocks[i].Pending {
			return true
		}
	}
	return false
}

// dispatchGatedJobs walks e's job list in FIFO order, resolving every job
// whose gating has cleared and leaving the rest queued (spec section 4.5).
func (c *Cache) dispatchGatedJobs(e *pieceindex.Entry, exec peercache.Executor, ioErr error) {
	e.Jobs.Each(func(job *peercache.Job) bool {
		if ioErr != nil {
			job.Err = int(peercache.ResultIOError)
		}

		if rangeStillPending(e, job) {
			return false
		}
		if job.Action == peercache.ActionReadAndHash && !e.AllResident() {
			return false
		}
		if job.Action == peercache.ActionHash && e.NumDirty > 0 {
			return false
		}

		c.resolveJob(e, job, exec, ioErr)
		return true
	})
}

func (c *Cache) resolveJob(e *pieceindex.Entry, job *peercache.Job, exec peercache.Executor, ioErr error) {
	if ioErr != nil {
		// The blocks this job needed were just released by MarkAsDone's
		// error branch; don't go looking for them again (they'd read back
		// as a cache miss and mask the real failure). job.Err is already
		// ResultIOError, set by dispatchGatedJobs.
		if exec != nil {
			exec.Post(job.Err, job)
		}
		return
	}

	switch job.Action {
	case peercache.ActionRead, peercache.ActionReadAndHash:
		n := c.TryRead(job)
		switch {
		case n == int(peercache.ResultNotCached):
			// Shouldn't happen given gating, but handle defensively per
			// spec section 4.5.
			return
		case n == int(peercache.ResultOutOfMemory):
			job.Err = int(peercache.ResultOutOfMemory)
		default:
			job.Err = n
		}

		if job.Action == peercache.ActionReadAndHash && job.Err >= 0 && !job.Storage.DisableHashChecks() {
			if !c.verifyPieceHash(e, job.Storage) {
				job.Err = int(peercache.ResultHashMismatch)
			}
		}

	case peercache.ActionHash:
		c.resolveHashJob(job, exec)
		return

	default:
		job.Err = int(job.BufferSize)
	}

	if exec != nil {
		exec.Post(job.Err, job)
	}
}

// resolveHashJob computes a standalone `hash` job's result (spec section
// 4.5): synchronously compute from disk through the storage collaborator,
// compare, mark-failed on mismatch. When a hash pool is wired, the disk read
// and SHA-1 run on a worker goroutine and the callback is posted from there
// once it finishes, per the design note that this should be a worker-thread
// operation rather than run inline during dispatch.
func (c *Cache) resolveHashJob(job *peercache.Job, exec peercache.Executor) {
	finish := func(actual [20]byte, err error) {
		switch {
		case err != nil:
			job.Err = int(peercache.ResultIOError)
		case !hashcheck.Verify(job.Storage.HashForPiece(job.Piece), actual):
			job.Storage.MarkFailed(job.Piece)
			job.Err = int(peercache.ResultHashMismatch)
		default:
			job.Err = int(job.BufferSize)
		}
		if exec != nil {
			exec.Post(job.Err, job)
		}
	}

	if c.hashPool == nil {
		actual, err := job.Storage.HashForPieceImpl(job.Piece)
		finish(actual, err)
		return
	}

	storage := job.Storage
	piece := job.Piece
	c.hashPool.Submit(hashcheck.Task{
		Compute: func() ([20]byte, error) {
			return storage.HashForPieceImpl(piece)
		},
		Done: finish,
	})
}

// verifyPieceHash computes SHA-1 over every resident block of e and compares
// it against the expected hash. On mismatch it calls Storage.MarkFailed
// before returning false.
func (c *Cache) verifyPieceHash(e *pieceindex.Entry, storage peercache.Storage) bool {
	bufs := make([][]byte, len(e.Blocks))
	for i := range e.Blocks {
		bufs[i] = e.Blocks[i].Buffer
	}
	actual := hashcheck.ComputeFromBlocks(bufs, storage.PieceSize(e.Piece))
	if !hashcheck.Verify(storage.HashForPiece(e.Piece), actual) {
		storage.MarkFailed(e.Piece)
		return false
	}
	return true
}

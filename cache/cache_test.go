package cache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/cache"
	"github.com/rkennedy/peercache/cachetest"
)

const pieceSize = 2 * peercache.BlockSize

func TestAddDirtyBlockThenReadHit(t *testing.T) {
	// S1: write-then-read hit.
	c, _ := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 2)

	payload := cachetest.RandomImage(t, peercache.BlockSize)
	writeJob := cachetest.NewJob(peercache.ActionWrite, st, 0, 0, peercache.BlockSize)
	writeJob.Buffer = append([]byte(nil), payload...)

	result := c.AddDirtyBlock(writeJob)
	require.Equal(t, peercache.ResultOK, result)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.CacheSize)
	assert.Equal(t, 1, stats.WriteCacheSize)

	readJob := cachetest.NewJob(peercache.ActionRead, st, 0, 0, peercache.BlockSize)
	n := c.TryRead(readJob)
	require.Equal(t, peercache.BlockSize, n)
	assert.Equal(t, payload, readJob.Buffer)

	stats = c.GetStats()
	assert.EqualValues(t, 1, stats.BlocksReadHit)
}

func TestAllocatePendingThenMarkAsDone(t *testing.T) {
	// S2: read miss -> pending -> complete.
	c, _ := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 4)

	missJob := cachetest.NewJob(peercache.ActionRead, st, 3, 0, peercache.BlockSize)
	require.Equal(t, int(peercache.ResultNotCached), c.TryRead(missJob))

	job := cachetest.NewJob(peercache.ActionRead, st, 3, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 2, cache.PriorityRegularRead, job)
	require.Equal(t, 2, n)

	e := c.Find(st.ID(), 3)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Refcount)
	assert.True(t, e.Blocks[0].Uninitialized)
	assert.True(t, e.Blocks[1].Uninitialized)

	exec := &cachetest.RecordingExecutor{}
	c.MarkAsDone(e, 0, 2, exec, nil)

	require.Len(t, exec.Posted, 1)
	assert.Equal(t, job.BufferSize, uint32(exec.Posted[0].Result))
	assert.Equal(t, 0, e.Refcount)
}

func TestEvictionUnderPressure(t *testing.T) {
	// S3: eviction under pressure.
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 4)

	for p := peercache.PieceIndex(0); p < 2; p++ {
		for b := uint32(0); b < 2; b++ {
			job := cachetest.NewJob(peercache.ActionRead, st, p, b*peercache.BlockSize, peercache.BlockSize)
			n := c.AllocatePending(st, peercache.BlockIndex(b), peercache.BlockIndex(b+1), cache.PriorityRegularRead, job)
			require.Equal(t, 1, n)
			e := c.Find(st.ID(), p)
			c.MarkAsDone(e, peercache.BlockIndex(b), peercache.BlockIndex(b+1), nil, nil)
			// The completed read job carries a pool-owned send buffer; release
			// it the way the job's receiver would.
			pool.FreeBuffer(job.Buffer)
		}
	}
	require.Equal(t, 4, c.CacheSize())
	require.Equal(t, 4, pool.InUse())

	writeJob := cachetest.NewJob(peercache.ActionWrite, st, 2, 0, peercache.BlockSize)
	writeJob.Buffer = make([]byte, peercache.BlockSize)
	result := c.AddDirtyBlock(writeJob)
	require.Equal(t, peercache.ResultOK, result)
	assert.Equal(t, 4, c.CacheSize())
	// One evicted pool buffer went back; the new dirty block is the test's
	// own buffer, not a pool slot.
	assert.Equal(t, 3, pool.InUse())
}

func TestBeginFlushThenMarkAsDoneTransitionsDirtyToClean(t *testing.T) {
	// The write-back completion round trip (spec section 1's first listed
	// concern): a dirty block is pinned via BeginFlush while the deferred
	// flush pass has storage I/O in flight for it, then MarkAsDone reports
	// success, flipping it clean and posting the originally queued write
	// job's callback.
	c, _ := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)

	writeJob := cachetest.NewJob(peercache.ActionWrite, st, 0, 0, peercache.BlockSize)
	writeJob.Buffer = cachetest.RandomImage(t, peercache.BlockSize)
	require.Equal(t, peercache.ResultOK, c.AddDirtyBlock(writeJob))

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)
	require.True(t, e.Blocks[0].Dirty)
	require.Equal(t, 1, c.GetStats().WriteCacheSize)

	result := c.BeginFlush(e, 0, 1)
	require.Equal(t, peercache.ResultOK, result)
	assert.True(t, e.Blocks[0].Pending)
	assert.Equal(t, 1, e.Refcount)

	exec := &cachetest.RecordingExecutor{}
	c.MarkAsDone(e, 0, 1, exec, nil)

	assert.False(t, e.Blocks[0].Pending)
	assert.False(t, e.Blocks[0].Dirty)
	assert.Equal(t, 0, e.Refcount)

	stats := c.GetStats()
	assert.Equal(t, 0, stats.WriteCacheSize)
	assert.Equal(t, 1, stats.ReadCacheSize)

	require.Len(t, exec.Posted, 1)
	assert.Equal(t, writeJob, exec.Posted[0].Job)
	assert.Equal(t, int(peercache.BlockSize), exec.Posted[0].Result)
}

func TestMarkAsDoneErrorPathFreesBuffersBackToPool(t *testing.T) {
	// Regression: MarkAsDone's err != nil branch used to discard
	// releaseBlock's buffer instead of returning it to the pool, so a failed
	// read left its buffers permanently checked out.
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)

	job := cachetest.NewJob(peercache.ActionRead, st, 0, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 2, cache.PriorityRegularRead, job)
	require.Equal(t, 2, n)
	require.Equal(t, 2, pool.InUse())

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)

	exec := &cachetest.RecordingExecutor{}
	c.MarkAsDone(e, 0, 2, exec, errors.New("simulated disk failure"))

	require.Len(t, exec.Posted, 1)
	assert.Equal(t, int(peercache.ResultIOError), exec.Posted[0].Result)
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, 0, pool.InUse(), "a failed completion must return its buffers to the pool")
}

func TestEvictionFreesBuffersBackToPool(t *testing.T) {
	// Regression: Evict used to discard releaseBlock's buffer instead of
	// returning it to the pool, so pool.InUse() stayed pinned even though
	// cache_size dropped, and the next allocation spuriously failed.
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 2)

	for b := uint32(0); b < 2; b++ {
		job := cachetest.NewJob(peercache.ActionRead, st, 0, b*peercache.BlockSize, peercache.BlockSize)
		n := c.AllocatePending(st, peercache.BlockIndex(b), peercache.BlockIndex(b+1), cache.PriorityRegularRead, job)
		require.Equal(t, 1, n)
		e := c.Find(st.ID(), 0)
		c.MarkAsDone(e, peercache.BlockIndex(b), peercache.BlockIndex(b+1), nil, nil)
		pool.FreeBuffer(job.Buffer) // the completed read's send buffer
	}
	require.Equal(t, 2, c.CacheSize())
	require.Equal(t, 2, pool.InUse())

	remaining := c.Evict(2, cache.PriorityRegularRead, nil)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, 0, pool.InUse(), "evicted buffers must be returned to the pool")

	job := cachetest.NewJob(peercache.ActionRead, st, 1, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 1, cache.PriorityRegularRead, job)
	require.Equal(t, 1, n, "pool must have room after eviction frees its buffers")
}

func TestEvictionCannotEvictDirty(t *testing.T) {
	// S4: eviction cannot evict dirty.
	c, _ := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 4)

	for p := peercache.PieceIndex(0); p < 2; p++ {
		for b := uint32(0); b < 2; b++ {
			job := cachetest.NewJob(peercache.ActionWrite, st, p, b*peercache.BlockSize, peercache.BlockSize)
			job.Buffer = make([]byte, peercache.BlockSize)
			require.Equal(t, peercache.ResultOK, c.AddDirtyBlock(job))
		}
	}
	require.Equal(t, 4, c.CacheSize())

	job := cachetest.NewJob(peercache.ActionRead, st, 3, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 1, cache.PriorityRegularRead, job)
	assert.Equal(t, int(peercache.ResultOutOfCacheSpace), n)
	assert.Equal(t, 4, c.CacheSize())
}

func TestHashVerificationOnReadAndHash(t *testing.T) {
	// S5: hash verification on read-and-hash.
	c, _ := cachetest.NewDefaultCache(4)
	st, image := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)

	job := cachetest.NewJob(peercache.ActionReadAndHash, st, 0, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 2, cache.PriorityRequiredRead, job)
	require.Equal(t, 2, n)
	e := c.Find(st.ID(), 0)

	// Stand in for the disk worker: fill the pending blocks from storage.
	copy(e.Blocks[0].Buffer, image[:peercache.BlockSize])
	copy(e.Blocks[1].Buffer, image[peercache.BlockSize:])

	exec := &cachetest.RecordingExecutor{}
	c.MarkAsDone(e, 0, 2, exec, nil)
	require.Len(t, exec.Posted, 1)
	assert.GreaterOrEqual(t, exec.Posted[0].Result, 0)

	e.Blocks[0].Buffer[0] ^= 0xFF

	job2 := cachetest.NewJob(peercache.ActionReadAndHash, st, 0, 0, peercache.BlockSize)
	e.Jobs.Append(job2)
	exec2 := &cachetest.RecordingExecutor{}
	c.MarkAsDone(e, 0, 0, exec2, nil)
	require.Len(t, exec2.Posted, 1)
	assert.Equal(t, int(peercache.ResultHashMismatch), exec2.Posted[0].Result)
	assert.True(t, st.Failed(0))
}

func TestAbortDirtyCancelsPendingWrites(t *testing.T) {
	// S6: abort_dirty cancels pending writes.
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)

	var jobs []*peercache.Job
	for b := uint32(0); b < 2; b++ {
		job := cachetest.NewJob(peercache.ActionWrite, st, 0, b*peercache.BlockSize, peercache.BlockSize)
		job.Buffer = pool.AllocateBuffer("write")
		require.Equal(t, peercache.ResultOK, c.AddDirtyBlock(job))
		jobs = append(jobs, job)
	}
	require.Equal(t, 2, pool.InUse())

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)

	exec := &cachetest.RecordingExecutor{}
	c.AbortDirty(e, exec)

	require.Len(t, exec.Posted, 2)
	for _, posted := range exec.Posted {
		assert.Equal(t, int(peercache.ResultOperationAborted), posted.Result)
	}
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, 0, pool.InUse(), "aborted dirty buffers must be returned to the pool")
}

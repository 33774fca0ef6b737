package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/cache"
	"github.com/rkennedy/peercache/cachetest"
)

func fillOneCleanBlock(t *testing.T, c *cache.Cache, pool peercache.BufferPool, st peercache.Storage, piece peercache.PieceIndex) {
	job := cachetest.NewJob(peercache.ActionRead, st, piece, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 1, cache.PriorityRegularRead, job)
	require.Equal(t, 1, n)
	e := c.Find(st.ID(), piece)
	c.MarkAsDone(e, 0, 1, nil, nil)
	// Release the completed read's send buffer, leaving only the cached block
	// checked out of the pool.
	pool.FreeBuffer(job.Buffer)
}

func TestMarkForDeletionIsIdempotent(t *testing.T) {
	// Property 6: mark_for_deletion twice is equivalent to once.
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)
	fillOneCleanBlock(t, c, pool, st, 0)
	require.Equal(t, 1, pool.InUse())

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)

	c.MarkForDeletion(e)
	assert.Nil(t, c.Find(st.ID(), 0))
	assert.Equal(t, 0, pool.InUse(), "mark_for_deletion must return the evicted buffer to the pool")

	c.MarkForDeletion(e)
	assert.Nil(t, c.Find(st.ID(), 0))
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, 0, pool.InUse())
}

func TestDrainPieceBuffersTransfersOwnership(t *testing.T) {
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)
	fillOneCleanBlock(t, c, pool, st, 0)

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)

	var dest [][]byte
	n := c.DrainPieceBuffers(e, &dest)
	assert.Equal(t, 1, n)
	require.Len(t, dest, 1)
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, 1, pool.InUse(), "drained buffer is not returned to the pool")
}

func TestFreePieceReturnsBuffersToPool(t *testing.T) {
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 1)
	fillOneCleanBlock(t, c, pool, st, 0)

	e := c.Find(st.ID(), 0)
	require.NotNil(t, e)
	require.Equal(t, 1, pool.InUse())

	c.FreePiece(e)
	assert.Equal(t, 0, pool.InUse())
	assert.Nil(t, c.Find(st.ID(), 0))
}

func TestDrainStorageAggregatesPinnedPieces(t *testing.T) {
	c, pool := cachetest.NewDefaultCache(4)
	st, _ := cachetest.NewDefaultStorage(t, 1, pieceSize, 2)

	fillOneCleanBlock(t, c, pool, st, 0)

	job := cachetest.NewJob(peercache.ActionRead, st, 1, 0, peercache.BlockSize)
	n := c.AllocatePending(st, 0, 1, cache.PriorityRegularRead, job)
	require.Equal(t, 1, n)

	err := c.DrainStorage(st.ID())
	require.Error(t, err)
	assert.Nil(t, c.Find(st.ID(), 0))
	assert.NotNil(t, c.Find(st.ID(), 1))
}

package jobqueue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/jobqueue"
)

func job(piece peercache.PieceIndex) *peercache.Job {
	return &peercache.Job{Piece: piece}
}

func TestAppendAndAt(t *testing.T) {
	q := jobqueue.New()
	assert.True(t, q.Empty())

	q.Append(job(0))
	q.Append(job(1))

	require.Equal(t, 2, q.Len())
	assert.EqualValues(t, 0, q.At(0).Piece)
	assert.EqualValues(t, 1, q.At(1).Piece)
}

func TestRemoveAtPreservesOrder(t *testing.T) {
	q := jobqueue.New()
	q.Append(job(0))
	q.Append(job(1))
	q.Append(job(2))

	q.RemoveAt(1)

	require.Equal(t, 2, q.Len())
	assert.EqualValues(t, 0, q.At(0).Piece)
	assert.EqualValues(t, 2, q.At(1).Piece)
}

func TestEachRemovesInPlace(t *testing.T) {
	q := jobqueue.New()
	q.Append(job(0))
	q.Append(job(1))
	q.Append(job(2))

	var seen []peercache.PieceIndex
	q.Each(func(j *peercache.Job) bool {
		seen = append(seen, j.Piece)
		return j.Piece == 1
	})

	assert.Equal(t, []peercache.PieceIndex{0, 1, 2}, seen)
	require.Equal(t, 2, q.Len())
	assert.EqualValues(t, 0, q.At(0).Piece)
	assert.EqualValues(t, 2, q.At(1).Piece)
}

func TestDrainEmptiesQueue(t *testing.T) {
	q := jobqueue.New()
	q.Append(job(0))
	q.Append(job(1))

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.True(t, q.Empty())
}

package storage_test

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/storage"
)

func TestPieceSizeHandlesShortLastPiece(t *testing.T) {
	image := make([]byte, 100)
	st := storage.New(1, image, 64, nil)

	assert.EqualValues(t, 64, st.PieceSize(0))
	assert.EqualValues(t, 36, st.PieceSize(1))
	assert.EqualValues(t, 0, st.PieceSize(2))
}

func TestHashForPieceImplMatchesContent(t *testing.T) {
	image := make([]byte, 64)
	for i := range image {
		image[i] = byte(i)
	}
	st := storage.New(1, image, 64, nil)

	hash, err := st.HashForPieceImpl(0)
	require.NoError(t, err)
	assert.Equal(t, sha1.Sum(image), hash)
}

func TestMarkFailedAndFence(t *testing.T) {
	st := storage.New(1, make([]byte, 64), 64, nil)

	assert.False(t, st.Failed(0))
	st.MarkFailed(0)
	assert.True(t, st.Failed(0))

	assert.False(t, st.HasFence())
	st.RaiseFence()
	assert.True(t, st.HasFence())
	st.LowerFence()
	assert.False(t, st.HasFence())
}

func TestWriteAtThenReadAtRoundTrips(t *testing.T) {
	st := storage.New(1, make([]byte, 64), 64, nil)

	payload := []byte("hello, piece")
	require.NoError(t, st.WriteAt(10, payload))

	got, err := st.ReadAt(10, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestExpectedHashLookup(t *testing.T) {
	expected := map[peercache.PieceIndex][20]byte{0: sha1.Sum([]byte("a"))}
	st := storage.New(1, make([]byte, 64), 64, expected)

	assert.Equal(t, expected[0], st.HashForPiece(0))
	assert.Equal(t, [20]byte{}, st.HashForPiece(1))
}

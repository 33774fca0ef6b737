// Package cachetest provides test fixtures mirroring the teacher's
// testing.CreateDefaultCache/CreateRandomImage, adapted from a single
// object's block cache to the piece/block cache this module implements.
package cachetest

import (
	"crypto/rand"
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/buffers"
	"github.com/rkennedy/peercache/cache"
	"github.com/rkennedy/peercache/storage"
)

// RandomImage returns totalBytes of random data. It fails the test and
// aborts if the system RNG is unavailable.
func RandomImage(t *testing.T, totalBytes int) []byte {
	data := make([]byte, totalBytes)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to initialize %d random bytes", totalBytes)
	return data
}

// NewDefaultStorage builds a storage.FileStorage over a random image of
// totalPieces pieces of exactly pieceSize bytes each, with expected hashes
// computed from that image, and returns the image alongside it. Hash jobs
// pass against it as built; read-and-hash jobs pass once the cached blocks
// hold the image's bytes.
func NewDefaultStorage(t *testing.T, id peercache.StorageID, pieceSize uint32, totalPieces int) (*storage.FileStorage, []byte) {
	totalBytes := int(pieceSize) * totalPieces
	image := RandomImage(t, totalBytes)

	hashes := make(map[peercache.PieceIndex][20]byte, totalPieces)
	for p := 0; p < totalPieces; p++ {
		start := p * int(pieceSize)
		end := start + int(pieceSize)
		if end > len(image) {
			end = len(image)
		}
		hashes[peercache.PieceIndex(p)] = sha1.Sum(image[start:end])
	}

	return storage.New(id, image, pieceSize, hashes), image
}

// NewDefaultCache builds a Cache with a backing buffer pool sized for
// maxBlocks, leaving DefaultCacheMinTime at zero.
func NewDefaultCache(maxBlocks int) (*cache.Cache, *buffers.Pool) {
	pool := buffers.New(maxBlocks)
	c := cache.New(cache.Config{MaxSize: maxBlocks}, pool)
	return c, pool
}

// NewJob builds a Job for the given action with a fresh result slot, ready
// to hand to the cache or a collaborator.
func NewJob(action peercache.Action, st peercache.Storage, piece peercache.PieceIndex, offset, size uint32) *peercache.Job {
	return &peercache.Job{
		Action:     action,
		Storage:    st,
		Piece:      piece,
		Offset:     offset,
		BufferSize: size,
	}
}

// RecordingExecutor is an in-memory peercache.Executor that appends every
// posted completion, for assertions in tests that don't need a real
// reactor thread.
type RecordingExecutor struct {
	Posted []Completion
}

// Completion is one (result, job) pair posted to a RecordingExecutor.
type Completion struct {
	Result int
	Job    *peercache.Job
}

func (r *RecordingExecutor) Post(result int, job *peercache.Job) {
	r.Posted = append(r.Posted, Completion{Result: result, Job: job})
}

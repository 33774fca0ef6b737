package main

import (
	"crypto/rand"
	"crypto/sha1"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/buffers"
	"github.com/rkennedy/peercache/cache"
	"github.com/rkennedy/peercache/pieceindex"
	"github.com/rkennedy/peercache/storage"
)

// session bundles one cache instance together with the in-memory storage it
// fronts, the unit every subcommand builds fresh and operates against.
type session struct {
	cache     *cache.Cache
	pool      *buffers.Pool
	store     *storage.FileStorage
	pieceSize uint32
}

func newSession(pieces int, pieceSize uint32, maxSize int) *session {
	image := make([]byte, int(pieceSize)*pieces)
	_, _ = rand.Read(image)

	hashes := make(map[peercache.PieceIndex][20]byte, pieces)
	for p := 0; p < pieces; p++ {
		start := p * int(pieceSize)
		end := start + int(pieceSize)
		hashes[peercache.PieceIndex(p)] = sha1.Sum(image[start:end])
	}

	pool := buffers.New(maxSize)
	return &session{
		cache:     cache.New(cache.Config{MaxSize: maxSize}, pool),
		pool:      pool,
		store:     storage.New(peercache.StorageID(1), image, pieceSize, hashes),
		pieceSize: pieceSize,
	}
}

// channelExecutor posts completions onto a channel, the shape a real
// session's network reactor thread would drain from (spec section 6's
// Executor collaborator); the CLI drains it inline since there's no reactor
// thread here.
type channelExecutor struct {
	ch chan posted
}

type posted struct {
	result int
	job    *peercache.Job
}

func newChannelExecutor(capacity int) *channelExecutor {
	return &channelExecutor{ch: make(chan posted, capacity)}
}

func (e *channelExecutor) Post(result int, job *peercache.Job) {
	e.ch <- posted{result: result, job: job}
}

func (e *channelExecutor) close() {
	close(e.ch)
}

// randomBlock returns peercache.BlockSize bytes of random payload, for
// subcommands that need something to write without a real peer feeding them
// data.
func randomBlock() []byte {
	buf := make([]byte, peercache.BlockSize)
	_, _ = rand.Read(buf)
	return buf
}

// fillPendingFromStorage satisfies, outside the cache, the disk read that
// AllocatePending's pinned range is waiting on: it's the deferred I/O pass
// spec section 4.3/4.4 describe as living beyond the cache's boundary.
func (s *session) fillPendingFromStorage(e *pieceindex.Entry, piece peercache.PieceIndex, begin, end peercache.BlockIndex) error {
	for i := int(begin); i < int(end); i++ {
		offset := int64(piece)*int64(s.pieceSize) + int64(i)*int64(peercache.BlockSize)
		buf, err := s.store.ReadAt(offset, peercache.BlockSize)
		if err != nil {
			return err
		}
		copy(e.Blocks[i].Buffer, buf)
	}
	return nil
}

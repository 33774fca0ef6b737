// Package cache implements the block cache engine: the subject of this
// module. It owns the piece index, tracks dirty/clean/pending state per
// block, coordinates job lifecycles, and enforces the invariants in spec
// section 3.
//
// A Cache is not internally thread-safe. It presumes serialized access from
// a single disk-coordinator goroutine, exactly as spec section 5 describes;
// callers on other goroutines must submit work through an outer queue.
package cache

import (
	"time"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/hashcheck"
	"github.com/rkennedy/peercache/pieceindex"
)

// Priority is accepted by AllocatePending and Evict and passed through to
// Evict. It changes neither admission (callers of every priority may evict to
// make room) nor which victim is chosen (spec section 4.6 / 9).
type Priority int

const (
	PriorityRegularRead Priority = iota
	PriorityWrite
	PriorityRequiredRead
)

// Config holds the construction-time parameters for a Cache, mirroring the
// teacher's constructor-parameter style (blockcache.New) rather than a
// generic options/functional-options framework.
type Config struct {
	// MaxSize is the admission ceiling, in blocks.
	MaxSize int
	// DefaultCacheMinTime is used when a Job doesn't specify CacheMinTime.
	DefaultCacheMinTime time.Duration
}

// Cache is the block cache engine.
type Cache struct {
	cfg   Config
	index *pieceindex.Index
	pool  peercache.BufferPool

	maxSize        int
	cacheSize      int
	readCacheSize  int
	writeCacheSize int
	blocksRead     uint64
	blocksReadHit  uint64

	now func() time.Time

	// hashPool, if set, offloads standalone `hash` jobs (spec section 4.5)
	// onto worker goroutines instead of computing them inline during
	// dispatch, per the design note recommending hashing become a
	// worker-thread operation. Nil means compute inline.
	hashPool *hashcheck.Pool
}

// SetHashPool wires an asynchronous hashing stage. Pass nil to go back to
// inline computation.
func (c *Cache) SetHashPool(pool *hashcheck.Pool) {
	c.hashPool = pool
}

// New creates an empty Cache backed by pool for block buffers.
func New(cfg Config, pool peercache.BufferPool) *Cache {
	return &Cache{
		cfg:     cfg,
		index:   pieceindex.New(),
		pool:    pool,
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

// Stats is the egress snapshot described in spec section 6 ("Stats").
type Stats struct {
	BlocksRead     uint64
	BlocksReadHit  uint64
	CacheSize      int
	ReadCacheSize  int
	WriteCacheSize int
}

// GetStats fills in the current counters.
func (c *Cache) GetStats() Stats {
	return Stats{
		BlocksRead:     c.blocksRead,
		BlocksReadHit:  c.blocksReadHit,
		CacheSize:      c.cacheSize,
		ReadCacheSize:  c.readCacheSize,
		WriteCacheSize: c.writeCacheSize,
	}
}

// Resize changes the admission ceiling. It does not itself evict to bring
// CacheSize under the new MaxSize; the next admission attempt will do that.
func (c *Cache) Resize(newMaxSize int) {
	c.maxSize = newMaxSize
}

// MaxSize returns the current admission ceiling, in blocks.
func (c *Cache) MaxSize() int {
	return c.maxSize
}

// CacheSize returns the total number of resident blocks across all pieces.
func (c *Cache) CacheSize() int {
	return c.cacheSize
}

// Find returns the piece entry for (storage, piece), or nil if absent (spec
// section 4.1).
func (c *Cache) Find(storage peercache.StorageID, piece peercache.PieceIndex) *pieceindex.Entry {
	return c.index.Find(storage, piece)
}

// PiecesForStorage returns every piece entry belonging to storage, in LRU
// order. Used at shutdown and fence drain (spec section 4.1).
func (c *Cache) PiecesForStorage(storage peercache.StorageID) []*pieceindex.Entry {
	return c.index.PiecesForStorage(storage)
}

// blocksInPiece computes how many BlockSize slots a piece needs, given its
// exact byte size from the storage collaborator.
func blocksInPiece(storage peercache.Storage, piece peercache.PieceIndex) int {
	size := storage.PieceSize(piece)
	n := int(size) / peercache.BlockSize
	if int(size)%peercache.BlockSize != 0 {
		n++
	}
	return n
}

// findOrCreate returns the existing entry for (storage, piece), allocating
// one if absent.
func (c *Cache) findOrCreate(storage peercache.Storage, piece peercache.PieceIndex) *pieceindex.Entry {
	key := pieceindex.Key{Storage: storage.ID(), Piece: piece}
	e := c.index.Find(key.Storage, key.Piece)
	if e != nil {
		return e
	}
	e = pieceindex.NewEntry(key, storage, blocksInPiece(storage, piece))
	c.index.Insert(e)
	return e
}

// touchExpire advances a piece's expire time to at least now+minTime and
// moves it to the most-recently-used end of the LRU list.
func (c *Cache) touchExpire(e *pieceindex.Entry, minTime time.Duration) {
	c.index.Touch(e, func(entry *pieceindex.Entry) {
		candidate := c.now().Add(minTime)
		if candidate.After(entry.Expire) {
			entry.Expire = candidate
		}
	})
}

func (c *Cache) cacheMinTime(job *peercache.Job) time.Duration {
	if job != nil && job.CacheMinTime > 0 {
		return time.Duration(job.CacheMinTime) * time.Second
	}
	return c.cfg.DefaultCacheMinTime
}

// eraseIfEmpty removes a piece from the index once it holds no blocks,
// keeping invariant 6 (spec section 3).
func (c *Cache) eraseIfEmpty(e *pieceindex.Entry) {
	if e.NumBlocks == 0 {
		c.index.Remove(e)
	}
}

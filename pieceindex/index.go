// Package pieceindex implements the cache's dual-keyed piece collection: a
// hash map on (StorageID, PieceIndex) for point lookup, paired with an
// intrusive doubly linked list ordered by last-use time for LRU eviction,
// per the design note that a "hash map plus intrusive linked list" realizes
// the teacher's multi-index container in a language-neutral way.
package pieceindex

import (
	"time"

	"github.com/boljen/go-bitmap"
	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/jobqueue"
)

// Block is one fixed-size cached unit within a piece entry.
type Block struct {
	Buffer        []byte
	Dirty         bool
	Pending       bool
	Uninitialized bool
	Refcount      int
}

// Key identifies a piece by the storage it belongs to and its index within
// that storage.
type Key struct {
	Storage peercache.StorageID
	Piece   peercache.PieceIndex
}

// Entry is the cached representation of one torrent piece.
type Entry struct {
	Key
	StorageHandle     peercache.Storage
	Expire            time.Time
	Blocks            []Block
	NumBlocks         int
	NumDirty          int
	Refcount          int
	MarkedForDeletion bool

	// presentMask and dirtyMask mirror Blocks' Buffer-present/Dirty state in
	// bitmap form, the way the teacher pairs a bitmap with a backing data
	// array (blockcache.BlockCache.loadedBlocks/dirtyBlocks next to data) so
	// range scans during eviction and gating don't need to walk every Block
	// struct just to test one bit.
	presentMask bitmap.Bitmap
	dirtyMask   bitmap.Bitmap

	// Jobs is the ordered FIFO of callers gated on this piece.
	Jobs *jobqueue.Queue

	prev, next *Entry
	inList     bool
}

// NewEntry allocates an Entry with blocksInPiece empty blocks.
func NewEntry(key Key, storage peercache.Storage, blocksInPiece int) *Entry {
	return &Entry{
		Key:           key,
		StorageHandle: storage,
		Blocks:        make([]Block, blocksInPiece),
		presentMask:   bitmap.New(blocksInPiece),
		dirtyMask:     bitmap.New(blocksInPiece),
		Jobs:          jobqueue.New(),
	}
}

// BlocksInPiece returns the number of block slots this entry has, including
// ones that are not yet resident.
func (e *Entry) BlocksInPiece() int {
	return len(e.Blocks)
}

func (e *Entry) setPresent(i int, present bool) {
	e.presentMask.Set(i, present)
}

func (e *Entry) setDirty(i int, dirty bool) {
	e.dirtyMask.Set(i, dirty)
}

// IsPresent reports the fast-path bit for block i; it always agrees with
// e.Blocks[i].Buffer != nil.
func (e *Entry) IsPresent(i int) bool {
	return e.presentMask.Get(i)
}

// IsDirty reports the fast-path bit for block i; it always agrees with
// e.Blocks[i].Dirty.
func (e *Entry) IsDirty(i int) bool {
	return e.dirtyMask.Get(i)
}

// AllResident reports whether every block slot in the piece holds a buffer.
func (e *Entry) AllResident() bool {
	return e.NumBlocks == len(e.Blocks)
}

// SetBlockPresent installs (or clears) a block's buffer and keeps NumBlocks
// and the presence mask consistent. Callers are responsible for refcount and
// dirty bookkeeping; this only tracks occupancy.
func (e *Entry) SetBlockPresent(i int, buf []byte) {
	wasPresent := e.Blocks[i].Buffer != nil
	e.Blocks[i].Buffer = buf
	nowPresent := buf != nil

	if nowPresent && !wasPresent {
		e.NumBlocks++
	} else if !nowPresent && wasPresent {
		e.NumBlocks--
	}
	e.setPresent(i, nowPresent)
}

// SetBlockDirty keeps NumDirty and the dirty mask consistent.
func (e *Entry) SetBlockDirty(i int, dirty bool) {
	was := e.Blocks[i].Dirty
	e.Blocks[i].Dirty = dirty
	if dirty && !was {
		e.NumDirty++
	} else if !dirty && was {
		e.NumDirty--
	}
	e.setDirty(i, dirty)
}

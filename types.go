// Package peercache implements the block cache that sits between peer
// connections and the storage layer of a peer-to-peer file sharing client.
// It write-back caches dirty blocks produced by incoming peer traffic, read
// caches blocks fetched from storage to satisfy outgoing peer requests, and
// coordinates the lifecycle of asynchronous disk I/O jobs.
package peercache

import "math"

// BlockSize is the fixed size of a single cached block, in bytes.
const BlockSize = 16 * 1024

// StorageID identifies a storage collaborator (one torrent's on-disk files).
// Storage handles are shared by reference between the cache and the outer
// session; StorageID is the comparable key the cache indexes them by.
type StorageID uint64

// PieceIndex is the zero-based index of a piece within a torrent.
type PieceIndex uint32

// BlockIndex is the zero-based index of a block within a piece.
type BlockIndex uint32

// InvalidPieceIndex marks the absence of a piece, analogous to a nil handle.
const InvalidPieceIndex = PieceIndex(math.MaxUint32)

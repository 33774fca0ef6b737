package peercache

// Storage is the egress contract to the collaborator that actually performs
// file I/O. The cache never reads or writes file content itself; it only
// tracks pending-block markers and defers to Storage between
// AllocatePending and MarkAsDone.
type Storage interface {
	ID() StorageID

	// PieceSize returns the exact byte length of the given piece (the last
	// piece of a torrent may be shorter than the rest).
	PieceSize(piece PieceIndex) uint32

	// HashForPiece returns the expected SHA-1 of a piece, taken from torrent
	// metadata.
	HashForPiece(piece PieceIndex) [20]byte

	// HashForPieceImpl synchronously (re-)computes a piece's SHA-1 straight
	// from disk, bypassing the cache. May block on I/O.
	HashForPieceImpl(piece PieceIndex) ([20]byte, error)

	// MarkFailed poisons a piece after a hash mismatch.
	MarkFailed(piece PieceIndex)

	// HasFence reports whether destructive operations (move/delete/rename)
	// are currently serialized against outstanding block I/O on this
	// storage.
	HasFence() bool

	// LowerFence releases the fence once no pending jobs remain.
	LowerFence()

	// DisableHashChecks mirrors settings().disable_hash_checks.
	DisableHashChecks() bool
}

// BufferPool is the egress contract to the fixed-size block allocator.
type BufferPool interface {
	AllocateBuffer(tag string) []byte
	FreeBuffer(buf []byte)
	FreeMultipleBuffers(bufs [][]byte)
	InUse() int
}

// Executor is the capability to post a job completion callback for
// asynchronous delivery, typically onto the network reactor's thread.
type Executor interface {
	Post(result int, job *Job)
}

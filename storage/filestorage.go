// Package storage provides a Storage collaborator (spec section 6) backed by
// an in-memory byte slice, grounded on the teacher's blockcache.WrapSlice:
// the slice is wrapped as an io.ReadWriteSeeker via bytesextra so piece reads
// and hashing go through the same seek/read/write surface real file-backed
// storage would use. It's meant for tests, the cachectl demo subcommand, and
// anywhere else a real torrent's on-disk files aren't available.
package storage

import (
	"crypto/sha1"
	"io"
	"sync"

	"github.com/xaionaro-go/bytesextra"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/errors"
)

// FileStorage implements peercache.Storage over an in-memory image, divided
// into fixed-size pieces (the last possibly short).
type FileStorage struct {
	id         peercache.StorageID
	pieceSize  uint32
	stream     io.ReadWriteSeeker
	totalBytes int64

	mu                sync.Mutex
	fenceHeld         bool
	disableHashChecks bool
	failedPieces      map[peercache.PieceIndex]bool
	expectedHashes    map[peercache.PieceIndex][20]byte
}

// New wraps image as a Storage with the given id and pieceSize. expectedHashes
// supplies the torrent-metadata SHA-1 for each piece; a piece absent from the
// map is treated as never matching (HashForPiece returns the zero hash).
func New(id peercache.StorageID, image []byte, pieceSize uint32, expectedHashes map[peercache.PieceIndex][20]byte) *FileStorage {
	return &FileStorage{
		id:             id,
		pieceSize:      pieceSize,
		stream:         bytesextra.NewReadWriteSeeker(image),
		totalBytes:     int64(len(image)),
		expectedHashes: expectedHashes,
		failedPieces:   make(map[peercache.PieceIndex]bool),
	}
}

func (s *FileStorage) ID() peercache.StorageID {
	return s.id
}

// PieceSize returns piece's exact byte length; the last piece may be shorter
// than pieceSize.
func (s *FileStorage) PieceSize(piece peercache.PieceIndex) uint32 {
	start := int64(piece) * int64(s.pieceSize)
	remaining := s.totalBytes - start
	if remaining <= 0 {
		return 0
	}
	if remaining > int64(s.pieceSize) {
		return s.pieceSize
	}
	return uint32(remaining)
}

func (s *FileStorage) HashForPiece(piece peercache.PieceIndex) [20]byte {
	return s.expectedHashes[piece]
}

// HashForPieceImpl reads the piece straight from the backing stream and
// hashes it, bypassing the cache entirely.
func (s *FileStorage) HashForPieceImpl(piece peercache.PieceIndex) ([20]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.PieceSize(piece)
	buf := make([]byte, size)
	if _, err := s.stream.Seek(int64(piece)*int64(s.pieceSize), io.SeekStart); err != nil {
		return [20]byte{}, errors.EIO.WrapError(err)
	}
	if _, err := io.ReadFull(s.stream, buf); err != nil {
		return [20]byte{}, errors.EIO.WrapError(err)
	}
	return sha1.Sum(buf), nil
}

func (s *FileStorage) MarkFailed(piece peercache.PieceIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedPieces[piece] = true
}

// Failed reports whether MarkFailed has been called for piece.
func (s *FileStorage) Failed(piece peercache.PieceIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedPieces[piece]
}

// RaiseFence engages the fence, used by a caller simulating a move/delete
// request racing with in-flight block I/O.
func (s *FileStorage) RaiseFence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fenceHeld = true
}

func (s *FileStorage) HasFence() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fenceHeld
}

func (s *FileStorage) LowerFence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fenceHeld = false
}

func (s *FileStorage) DisableHashChecks() bool {
	return s.disableHashChecks
}

// SetDisableHashChecks mirrors settings().disable_hash_checks for tests that
// need to exercise the no-verification path.
func (s *FileStorage) SetDisableHashChecks(disable bool) {
	s.disableHashChecks = disable
}

// ReadAt reads length bytes at offset straight from the backing image,
// bypassing the cache; used by tests to assert what actually landed on
// "disk" after a flush.
func (s *FileStorage) ReadAt(offset int64, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, length)
	if _, err := s.stream.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.EIO.WrapError(err)
	}
	if _, err := io.ReadFull(s.stream, buf); err != nil {
		return nil, errors.EIO.WrapError(err)
	}
	return buf, nil
}

// WriteAt writes buf at offset straight to the backing image, used by the
// deferred flush pass the cache itself never performs (spec section 4.3's
// closing note).
func (s *FileStorage) WriteAt(offset int64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.stream.Seek(offset, io.SeekStart); err != nil {
		return errors.EIO.WrapError(err)
	}
	if _, err := s.stream.Write(buf); err != nil {
		return errors.EIO.WrapError(err)
	}
	return nil
}

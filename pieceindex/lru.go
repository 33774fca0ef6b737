package pieceindex

import "github.com/rkennedy/peercache"

// Index is the dual-keyed piece collection: map on (StorageID, PieceIndex)
// for Find, intrusive doubly linked list ordered least-recently-used first
// (by insertion or last Touch) for Evict's LRU walk.
type Index struct {
	byKey     map[Key]*Entry
	head, tail *Entry // head = oldest (evict first), tail = newest
}

// New creates an empty Index.
func New() *Index {
	return &Index{byKey: make(map[Key]*Entry)}
}

// Len returns the number of pieces currently indexed.
func (idx *Index) Len() int {
	return len(idx.byKey)
}

// Find returns the piece entry for (storage, piece), or nil if absent.
func (idx *Index) Find(storage peercache.StorageID, piece peercache.PieceIndex) *Entry {
	return idx.byKey[Key{Storage: storage, Piece: piece}]
}

// Insert adds a newly created entry to both indexes. The entry starts at the
// most-recently-used end of the LRU list.
func (idx *Index) Insert(e *Entry) {
	idx.byKey[e.Key] = e
	idx.pushBack(e)
}

// Remove erases an entry from both indexes. It does not free the entry's
// buffers; callers must do that first.
func (idx *Index) Remove(e *Entry) {
	delete(idx.byKey, e.Key)
	idx.unlink(e)
}

// Touch moves an entry to the most-recently-used end and updates its expire
// time, used whenever a piece is read or written.
func (idx *Index) Touch(e *Entry, expire func(*Entry)) {
	expire(e)
	idx.unlink(e)
	idx.pushBack(e)
}

// PiecesForStorage returns every indexed piece belonging to the given
// storage, in LRU order (oldest first). Used at shutdown and fence drain
// (spec section 4.1).
func (idx *Index) PiecesForStorage(storage peercache.StorageID) []*Entry {
	var out []*Entry
	for e := idx.head; e != nil; e = e.next {
		if e.Storage == storage {
			out = append(out, e)
		}
	}
	return out
}

// OldestFirst returns every indexed piece ordered least-recently-used first
// (by insertion or last Touch; Expire values are not compared), the order
// Evict walks in.
func (idx *Index) OldestFirst() []*Entry {
	var out []*Entry
	for e := idx.head; e != nil; e = e.next {
		out = append(out, e)
	}
	return out
}

func (idx *Index) pushBack(e *Entry) {
	e.prev = idx.tail
	e.next = nil
	if idx.tail != nil {
		idx.tail.next = e
	}
	idx.tail = e
	if idx.head == nil {
		idx.head = e
	}
	e.inList = true
}

func (idx *Index) unlink(e *Entry) {
	if !e.inList {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		idx.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		idx.tail = e.prev
	}
	e.prev, e.next = nil, nil
	e.inList = false
}

// Package hashcheck computes and verifies the SHA-1 of cached piece data, and
// offers an asynchronous worker stage for hash work that would otherwise run
// inline during job dispatch (spec section 9's design note that synchronous
// hashing inside completion "should become a worker-thread operation").
package hashcheck

import (
	"crypto/sha1"

	"github.com/noxer/bytewriter"

	"github.com/rkennedy/peercache"
)

// ComputeFromBlocks concatenates up to size bytes from blocks (each at most
// peercache.BlockSize long) and returns their SHA-1. It uses bytewriter for
// the sequential cross-block copy, the same idiom read.go uses to splice two
// adjacent blocks into one destination buffer.
func ComputeFromBlocks(blocks [][]byte, size uint32) [20]byte {
	buf := make([]byte, size)
	w := bytewriter.New(buf)
	remaining := int(size)
	for _, b := range blocks {
		if remaining <= 0 {
			break
		}
		take := peercache.BlockSize
		if take > remaining {
			take = remaining
		}
		w.Write(b[:take])
		remaining -= take
	}
	return sha1.Sum(buf)
}

// Verify reports whether actual matches expected. It does not call
// Storage.MarkFailed itself; callers own that decision since the two hash
// actions (hash, read-and-hash) reach this from different gating contexts.
func Verify(expected, actual [20]byte) bool {
	return expected == actual
}

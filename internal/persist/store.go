// Package persist defines the key→bytes durability contract the core
// depends on for host identity and per-source bookmarks, plus a
// local-filesystem implementation of it.
package persist

import "fmt"

// Handle identifies a reserved entry inside a Store between
// AllocEntry/LookupEntry and the matching Map/Unmap pair.
type Handle int

// ErrNotFound is returned by LookupEntry when name has never been
// allocated.
var ErrNotFound = fmt.Errorf("persist: entry not found")

// Store is the durability contract (spec.md §4.7): a key→bytes map
// with explicit borrow-for-write semantics and an explicit commit
// point, so a driver can batch several entry writes into one durable
// flush.
type Store interface {
	// AllocEntry reserves a new entry of size bytes under name,
	// returning a handle usable with MapEntry/UnmapEntry. If name
	// already exists its size is NOT changed; use LookupEntry first.
	AllocEntry(name string, size int) (Handle, error)

	// LookupEntry finds a previously allocated (and committed) entry
	// by name, returning its handle, size, and stored version byte.
	// Returns ErrNotFound if name is unknown.
	LookupEntry(name string) (h Handle, size int, version byte, err error)

	// MapEntry borrows the entry's backing bytes for read/write. The
	// returned slice aliases the store's own buffer; callers must
	// call UnmapEntry (or Commit) before the bytes are considered
	// durable.
	MapEntry(h Handle) ([]byte, error)

	// UnmapEntry releases a borrow obtained from MapEntry. It does
	// not itself guarantee durability — call Commit for that.
	UnmapEntry(h Handle) error

	// Commit durably flushes every pending entry. Idempotent.
	Commit() error
}

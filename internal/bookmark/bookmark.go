// Package bookmark implements the opaque per-message position token
// an AckTracker hands out and later persists (spec.md §3.3).
package bookmark

import "github.com/flowlog-io/flowlog/internal/persist"

// Saver persists one bookmark's position. Drivers supply this; the
// core never interprets the body itself.
type Saver func(b *Bookmark) error

// Destroyer releases driver-specific resources a bookmark may be
// holding (e.g. a reference to a proto object). It runs exactly once
// per bookmark, whether or not Save was ever called on it.
type Destroyer func(b *Bookmark)

// Bookmark is a fixed-shape container for a driver-specific position
// descriptor (file offset, journal cursor, Kafka offset, ...). The
// core treats Body as opaque bytes; only the owning driver's Saver
// and Destroyer interpret it.
type Bookmark struct {
	Body  []byte
	Store persist.Store

	save    Saver
	destroy Destroyer

	saved     bool
	destroyed bool
	disabled  bool
}

// New constructs a bookmark bound to a driver's save/destroy
// callbacks and the persist store it will eventually write through.
func New(store persist.Store, save Saver, destroy Destroyer) *Bookmark {
	return &Bookmark{Store: store, save: save, destroy: destroy}
}

// Save persists the bookmark's current Body. It is idempotent:
// calling it twice with the same Body performs the write twice but
// has no additional observable effect, and calling it after
// DisableSaving turns it into a no-op (spec.md §4.3 "after this call,
// later save operations ... must be no-ops").
func (b *Bookmark) Save() error {
	if b.disabled || b.save == nil {
		return nil
	}
	if err := b.save(b); err != nil {
		return err
	}
	b.saved = true
	return nil
}

// Destroy releases driver resources. Safe to call multiple times;
// only the first call reaches the driver's Destroyer.
func (b *Bookmark) Destroy() {
	if b.destroyed || b.destroy == nil {
		b.destroyed = true
		return
	}
	b.destroy(b)
	b.destroyed = true
}

// DisableSaving makes all future Save calls no-ops, used when a
// source shuts down and must discard uncommitted progress rather than
// race a partially-drained pipeline (spec.md §4.3).
func (b *Bookmark) DisableSaving() {
	b.disabled = true
}

// Saved reports whether Save has ever succeeded on this bookmark.
func (b *Bookmark) Saved() bool { return b.saved }

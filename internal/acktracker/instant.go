package acktracker

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/flowlog-io/flowlog/internal/bookmark"
	"github.com/flowlog-io/flowlog/internal/refack"
)

// NewBookmarkFunc constructs a fresh, empty bookmark bound to a
// driver's save/destroy callbacks. Factories close over the driver's
// specifics and hand this down to the tracker so the tracker itself
// never needs to know the bookmark's body layout.
type NewBookmarkFunc func() *bookmark.Bookmark

// Instant is used when messages are processed strictly in order and
// every PROCESSED ack should immediately persist that message's
// position (spec.md §4.3.1).
type Instant struct {
	newBookmark NewBookmarkFunc

	mu       sync.Mutex
	current  *Record
	disabled atomic.Bool
}

// NewInstant constructs an Instant tracker with one pre-allocated
// slot.
func NewInstant(newBookmark NewBookmarkFunc) *Instant {
	t := &Instant{newBookmark: newBookmark}
	t.current = &Record{Bookmark: newBookmark()}
	return t
}

// RequestBookmark returns the same slot repeatedly until TrackMsg is
// called on it.
func (t *Instant) RequestBookmark() *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// TrackMsg hands the current slot to its message and prepares a fresh
// empty one for the next request.
func (t *Instant) TrackMsg(rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec != t.current {
		return
	}
	t.current = &Record{Bookmark: t.newBookmark()}
}

// ManageMsgAck saves rec's bookmark on PROCESSED and always destroys
// it; ABORTED/SUSPENDED skip the save (spec.md §4.3.1).
func (t *Instant) ManageMsgAck(rec *Record, outcome refack.Outcome) {
	if outcome == refack.Processed && !t.disabled.Load() {
		rec.Bookmark.Save()
	}
	rec.Bookmark.Destroy()
}

// DisableBookmarkSaving implements Tracker.
func (t *Instant) DisableBookmarkSaving() {
	t.disabled.Store(true)
}

// Deinit implements Tracker; Instant has nothing to flush.
func (t *Instant) Deinit() {}

// Package acktracker implements the four strategies that bind message
// acknowledgement to durable bookmark saves (spec.md §4.3). Rather
// than reproduce the C source's indirect-function-pointer vtable,
// each variant is its own concrete type satisfying the Tracker
// interface (spec.md §9 "Vtable of trackers" — tagged enum over
// indirect dispatch, expressed here as ordinary Go interfaces).
package acktracker

import (
	"github.com/flowlog-io/flowlog/internal/bookmark"
	"github.com/flowlog-io/flowlog/internal/refack"
)

// Record is an AckTracker's per-tracked-message slot (spec.md §3.5): a
// back-pointer to its bookmark, plus — for order-sensitive trackers —
// a sequence index and a processed flag the tracker's own bookkeeping
// sets.
type Record struct {
	Bookmark *bookmark.Bookmark

	index     int64
	acked     bool
	processed bool
	outcome   refack.Outcome
}

// Index is the slot's position in arrival order. Only meaningful for
// the Consecutive tracker; other variants leave it zero.
func (r *Record) Index() int64 { return r.index }

// Tracker is the contract every variant implements (spec.md §4.3).
type Tracker interface {
	// RequestBookmark returns the slot the reader should fill with
	// its current position before posting the resulting message.
	RequestBookmark() *Record

	// TrackMsg links a message to the record its bookmark was
	// requested from, after the reader has populated the bookmark.
	TrackMsg(rec *Record)

	// ManageMsgAck is invoked from the message's ack hook once its
	// outstanding-acks counter has dropped to zero.
	ManageMsgAck(rec *Record, outcome refack.Outcome)

	// DisableBookmarkSaving makes all subsequent bookmark saves
	// no-ops, used on source shutdown to discard uncommitted
	// progress.
	DisableBookmarkSaving()

	// Deinit flushes any pending batches. Safe to call once, at
	// shutdown.
	Deinit()
}

// Kind selects which Tracker variant a factory constructs (spec.md
// §6.1).
type Kind int

const (
	KindInstant Kind = iota
	KindInstantBookmarkless
	KindConsecutive
	KindBatched
)

package acktracker

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/flowlog-io/flowlog/internal/refack"
)

// Consecutive is used when messages may be acked out of order but
// must be persisted in arrival order — the typical file-tail or
// TCP-syslog case (spec.md §4.3.3). It is a ring buffer of Records
// indexed by a monotonic sequence number; bookmarks are only ever
// saved for a contiguous, fully-acked prefix so that a restart never
// resumes past an in-flight record. Failed (aborted or suspended)
// records in that prefix are passed over without a save, so a later
// processed record's save moves the resume point past them.
//
// Ring capacity must equal the source's maximum window size: the
// source's own window_counter already guarantees the write head can
// never lap the read head, so Consecutive does not re-check capacity
// on RequestBookmark (spec.md §4.3.3).
type Consecutive struct {
	newBookmark NewBookmarkFunc
	ring        []*Record

	mu       sync.Mutex
	writeSeq int64
	readSeq  int64

	disabled atomic.Bool
}

// NewConsecutive constructs a Consecutive tracker with a ring sized
// to capacity (the source's init_window_size).
func NewConsecutive(capacity int, newBookmark NewBookmarkFunc) *Consecutive {
	return &Consecutive{
		newBookmark: newBookmark,
		ring:        make([]*Record, capacity),
	}
}

// RequestBookmark hands out the slot at the current write head and
// advances it.
func (t *Consecutive) RequestBookmark() *Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := &Record{Bookmark: t.newBookmark(), index: t.writeSeq}
	t.ring[t.writeSeq%int64(len(t.ring))] = rec
	t.writeSeq++
	return rec
}

// TrackMsg is a no-op: the slot is already placed in the ring at
// RequestBookmark time, and it stays unacked (in-flight) until
// ManageMsgAck.
func (t *Consecutive) TrackMsg(rec *Record) {}

// ManageMsgAck records rec's outcome, then saves bookmarks for every
// contiguous acked-and-processed record starting at the read head,
// advancing the read head past them regardless of outcome
// (spec.md §4.3.3).
func (t *Consecutive) ManageMsgAck(rec *Record, outcome refack.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.acked = true
	rec.outcome = outcome
	rec.processed = outcome == refack.Processed

	for t.readSeq < t.writeSeq {
		i := t.readSeq % int64(len(t.ring))
		cur := t.ring[i]
		if cur == nil || !cur.acked {
			break
		}
		if cur.processed && !t.disabled.Load() {
			cur.Bookmark.Save()
		}
		cur.Bookmark.Destroy()
		t.ring[i] = nil
		t.readSeq++
	}
}

// DisableBookmarkSaving implements Tracker.
func (t *Consecutive) DisableBookmarkSaving() {
	t.disabled.Store(true)
}

// Deinit implements Tracker; Consecutive has no batch to flush.
func (t *Consecutive) Deinit() {}

package acktracker

import "github.com/flowlog-io/flowlog/internal/refack"

// InstantBookmarkless is the degenerate tracker for drivers that have
// no durable position to offer (spec.md §4.3.2). It hands out the
// same sentinel record forever and never calls Save; window
// accounting and ack chaining still work normally since those live in
// LogSource, not in the tracker.
type InstantBookmarkless struct {
	sentinel *Record
}

// NewInstantBookmarkless constructs the sentinel-record tracker. The
// sentinel's bookmark may be nil; no code path ever calls Save on it.
func NewInstantBookmarkless() *InstantBookmarkless {
	return &InstantBookmarkless{sentinel: &Record{}}
}

// RequestBookmark always returns the same sentinel slot.
func (t *InstantBookmarkless) RequestBookmark() *Record { return t.sentinel }

// TrackMsg is a no-op: there is nothing to rotate.
func (t *InstantBookmarkless) TrackMsg(rec *Record) {}

// ManageMsgAck is a no-op: this tracker persists nothing.
func (t *InstantBookmarkless) ManageMsgAck(rec *Record, outcome refack.Outcome) {}

// DisableBookmarkSaving is a no-op: there was never anything to save.
func (t *InstantBookmarkless) DisableBookmarkSaving() {}

// Deinit is a no-op: nothing is buffered.
func (t *InstantBookmarkless) Deinit() {}

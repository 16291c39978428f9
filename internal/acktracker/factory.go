package acktracker

import "time"

// Factory constructs the Tracker a LogSource binds at init (spec.md
// §6.1). Kind selects the variant; the Batched-only fields are
// ignored by the other variants.
type Factory struct {
	Kind Kind

	// WindowSize sizes the Consecutive tracker's ring; it must equal
	// the owning source's init_window_size.
	WindowSize int

	// StatsID labels whichever variant's metrics carry a "source"
	// label (currently only Batched's BatchFlushes).
	StatsID string

	// Batched-only parameters.
	BatchSize    int
	BatchTimeout time.Duration
	OnBatchAcked BatchCallback
}

// New builds the Tracker described by f, given the driver's bookmark
// constructor.
func (f Factory) New(newBookmark NewBookmarkFunc) Tracker {
	switch f.Kind {
	case KindInstantBookmarkless:
		return NewInstantBookmarkless()
	case KindConsecutive:
		return NewConsecutive(f.WindowSize, newBookmark)
	case KindBatched:
		return NewBatched(f.BatchSize, f.BatchTimeout, f.OnBatchAcked, newBookmark, f.StatsID)
	default:
		return NewInstant(newBookmark)
	}
}

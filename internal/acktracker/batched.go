package acktracker

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/flowlog-io/flowlog/internal/refack"
	"github.com/flowlog-io/flowlog/internal/stats"
)

// BatchCallback receives a batch once it is ready to be durably
// saved. It is expected to eventually call Save on each contained
// bookmark's record (spec.md §4.3.4); the tracker itself never calls
// Save for a batched record.
type BatchCallback func(records []*Record)

type batchState int

const (
	batchIdle batchState = iota
	batchFilling
	batchFlushing
)

// Batched is used by high-throughput destinations that want to save
// many bookmarks in one I/O (spec.md §4.3.4). It runs the state
// machine IDLE -> FILLING -> FLUSHING -> IDLE, flushing on batch_size,
// on timer fire, or on Deinit.
type Batched struct {
	newBookmark  NewBookmarkFunc
	batchSize    int
	timeout      time.Duration
	onBatchAcked BatchCallback
	statsID      string

	mu      sync.Mutex
	state   batchState
	current *Record
	pending []*Record
	timer   *time.Timer

	disabled atomic.Bool
	deinited atomic.Bool
}

// NewBatched constructs a Batched tracker. timeout <= 0 means no
// timer-driven flush (spec.md §9 open question: negative/zero timeout
// both disarm the timer; only batch_size and Deinit flush then).
// statsID labels the BatchFlushes metric this tracker reports flushes
// under.
func NewBatched(batchSize int, timeout time.Duration, onBatchAcked BatchCallback, newBookmark NewBookmarkFunc, statsID string) *Batched {
	return &Batched{
		newBookmark:  newBookmark,
		batchSize:    batchSize,
		timeout:      timeout,
		onBatchAcked: onBatchAcked,
		statsID:      statsID,
		current:      &Record{Bookmark: newBookmark()},
	}
}

// RequestBookmark returns the current slot repeatedly until TrackMsg
// rotates it out, the same reuse-until-tracked rule as Instant. The
// first request after IDLE additionally arms the timer and moves to
// FILLING.
func (t *Batched) RequestBookmark() *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == batchIdle {
		t.state = batchFilling
		t.armTimerLocked()
	}
	return t.current
}

// TrackMsg rotates in a freshly allocated slot once rec has been
// handed to its message.
func (t *Batched) TrackMsg(rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec != t.current {
		return
	}
	bm := t.newBookmark()
	if t.disabled.Load() {
		bm.DisableSaving()
	}
	t.current = &Record{Bookmark: bm}
}

func (t *Batched) armTimerLocked() {
	if t.timeout <= 0 {
		return
	}
	t.timer = time.AfterFunc(t.timeout, t.onTimerFire)
}

func (t *Batched) onTimerFire() {
	t.flush(stats.TriggerTimeout)
}

// ManageMsgAck appends a PROCESSED record to the pending batch,
// flushing immediately if that reaches batch_size. ABORTED/SUSPENDED
// records are destroyed without ever entering the batch (spec.md
// §4.3.4).
func (t *Batched) ManageMsgAck(rec *Record, outcome refack.Outcome) {
	if outcome != refack.Processed {
		rec.Bookmark.Destroy()
		return
	}

	rec.processed = true
	t.mu.Lock()
	if t.disabled.Load() {
		rec.Bookmark.DisableSaving()
	}
	t.pending = append(t.pending, rec)
	full := len(t.pending) >= t.batchSize && t.batchSize > 0
	t.mu.Unlock()

	if full {
		t.flush(stats.TriggerSize)
	}
}

// flush moves the current pending batch to FLUSHING and invokes the
// callback outside the lock, matching the "callback runs outside the
// per-tracker lock" rule (spec.md §4.3.4). Once the callback returns,
// every bookmark in the batch is destroyed. trigger records why this
// flush happened, for the BatchFlushes metric.
func (t *Batched) flush(trigger stats.FlushTrigger) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.state = batchIdle
		t.mu.Unlock()
		return
	}
	batch := t.pending
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.state = batchFlushing
	t.mu.Unlock()

	stats.BatchFlushes.WithLabelValues(t.statsID, string(trigger)).Inc()

	if t.onBatchAcked != nil {
		t.onBatchAcked(batch)
	}
	for _, rec := range batch {
		rec.Bookmark.Destroy()
	}

	t.mu.Lock()
	if t.state == batchFlushing {
		t.state = batchIdle
	}
	t.mu.Unlock()
}

// DisableBookmarkSaving implements Tracker: it disables saving on
// every bookmark already queued, on any created afterward, and on any
// record acked afterward before it joins the batch.
func (t *Batched) DisableBookmarkSaving() {
	t.disabled.Store(true)
	t.mu.Lock()
	for _, rec := range t.pending {
		rec.Bookmark.DisableSaving()
	}
	t.mu.Unlock()
}

// Deinit forces a flush of whatever is pending, regardless of
// occupancy (spec.md §4.3.4). Safe to call once.
func (t *Batched) Deinit() {
	if !t.deinited.CompareAndSwap(false, true) {
		return
	}
	t.flush(stats.TriggerDeinit)
}

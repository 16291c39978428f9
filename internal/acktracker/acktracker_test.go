package acktracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowlog-io/flowlog/internal/bookmark"
	"github.com/flowlog-io/flowlog/internal/refack"
)

// countingBookmarks builds bookmark.Bookmark values that record save
// and destroy counts so tests can assert against them without a real
// persist.Store.
type countingBookmarks struct {
	mu       sync.Mutex
	saves    int
	destroys int
}

func (c *countingBookmarks) newBookmark() *bookmark.Bookmark {
	return bookmark.New(nil, func(b *bookmark.Bookmark) error {
		c.mu.Lock()
		c.saves++
		c.mu.Unlock()
		return nil
	}, func(b *bookmark.Bookmark) {
		c.mu.Lock()
		c.destroys++
		c.mu.Unlock()
	})
}

func (c *countingBookmarks) counts() (saves, destroys int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves, c.destroys
}

// S1 — Instant-bookmarkless, same slot.
func TestInstantBookmarklessSameSlot(t *testing.T) {
	tr := NewInstantBookmarkless()

	bm1 := tr.RequestBookmark()
	bm2 := tr.RequestBookmark()
	assert.Same(t, bm1, bm2)

	tr.ManageMsgAck(bm1, refack.Processed)
}

// S2 — Instant, two in-order acks.
func TestInstantTwoInOrderAcks(t *testing.T) {
	cb := &countingBookmarks{}
	tr := NewInstant(cb.newBookmark)

	rec1 := tr.RequestBookmark()
	tr.TrackMsg(rec1)
	tr.ManageMsgAck(rec1, refack.Processed)

	rec2 := tr.RequestBookmark()
	tr.TrackMsg(rec2)
	tr.ManageMsgAck(rec2, refack.Processed)

	saves, destroys := cb.counts()
	assert.Equal(t, 2, saves)
	assert.Equal(t, 2, destroys)
}

// S3 — Batched with size 1, immediate synchronous flush.
func TestBatchedSizeOneImmediateFlush(t *testing.T) {
	cb := &countingBookmarks{}
	acked := false
	var gotRecords []*Record
	tr := NewBatched(1, 0, func(records []*Record) {
		acked = true
		gotRecords = records
	}, cb.newBookmark, "test")

	bm1 := tr.RequestBookmark()
	bm2 := tr.RequestBookmark()
	assert.Same(t, bm1, bm2, "same slot until TrackMsg")

	tr.TrackMsg(bm1)
	next := tr.RequestBookmark()
	assert.NotSame(t, bm1, next, "TrackMsg rotates in a new slot")

	tr.ManageMsgAck(bm1, refack.Processed)
	assert.True(t, acked, "batch_size=1 flush happens synchronously from ManageMsgAck")
	assert.Len(t, gotRecords, 1)
}

// S4 — Batched with size 3, timeout flush after two acks.
func TestBatchedTimeoutFlush(t *testing.T) {
	cb := &countingBookmarks{}
	flushed := make(chan []*Record, 1)
	tr := NewBatched(3, 50*time.Millisecond, func(records []*Record) {
		for _, r := range records {
			r.Bookmark.Save()
		}
		flushed <- records
	}, cb.newBookmark, "test")

	rec1 := tr.RequestBookmark()
	tr.TrackMsg(rec1)
	tr.ManageMsgAck(rec1, refack.Processed)

	rec2 := tr.RequestBookmark()
	tr.TrackMsg(rec2)
	tr.ManageMsgAck(rec2, refack.Processed)

	select {
	case records := <-flushed:
		assert.Len(t, records, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timer-driven flush")
	}

	saves, _ := cb.counts()
	assert.Equal(t, 2, saves)
	// the tracker destroys the batch after the callback returns, so the
	// destroys land just after the flushed channel receives.
	assert.Eventually(t, func() bool {
		_, destroys := cb.counts()
		return destroys == 2
	}, time.Second, 5*time.Millisecond)
}

// S5 — Batched deinit flushes a partial batch before the timer fires.
func TestBatchedDeinitFlushesPartialBatch(t *testing.T) {
	cb := &countingBookmarks{}
	var gotRecords []*Record
	tr := NewBatched(3, 2*time.Second, func(records []*Record) {
		for _, r := range records {
			r.Bookmark.Save()
		}
		gotRecords = records
	}, cb.newBookmark, "test")

	rec1 := tr.RequestBookmark()
	tr.TrackMsg(rec1)
	tr.ManageMsgAck(rec1, refack.Processed)

	rec2 := tr.RequestBookmark()
	tr.TrackMsg(rec2)
	tr.ManageMsgAck(rec2, refack.Processed)

	tr.Deinit()

	assert.Len(t, gotRecords, 2)
	saves, _ := cb.counts()
	assert.Equal(t, 2, saves)
}

// S6 — Suspend is sticky: of two records, the later one acked
// SUSPENDED first and the earlier one PROCESSED, only the processed
// record is saved, both are destroyed, and combining PROCESSED with
// SUSPENDED yields SUSPENDED.
func TestConsecutiveSuspendIsSticky(t *testing.T) {
	cb := &countingBookmarks{}
	tr := NewConsecutive(4, cb.newBookmark)

	recA := tr.RequestBookmark()
	recB := tr.RequestBookmark()

	// combined outcome across two acking paths for the "same logical
	// position" is computed by the message layer (refack.Cell); here
	// we exercise the tracker's own bookkeeping: the first ack in
	// sequence order gates when bookmarks save.
	tr.ManageMsgAck(recB, refack.Suspended)
	tr.ManageMsgAck(recA, refack.Processed)

	saves, destroys := cb.counts()
	assert.Equal(t, 1, saves, "only the processed record in the contiguous prefix is saved")
	assert.Equal(t, 2, destroys)
	assert.Equal(t, refack.CombinedOutcome(false, true), refack.Suspended)
}

func TestConsecutiveOrderingAcrossPrefix(t *testing.T) {
	cb := &countingBookmarks{}
	tr := NewConsecutive(8, cb.newBookmark)

	recs := make([]*Record, 4)
	for i := range recs {
		recs[i] = tr.RequestBookmark()
	}

	// ack out of order: 1, 0, then 3, 2 -- contiguous prefixes should
	// save exactly once each time a gap closes.
	tr.ManageMsgAck(recs[1], refack.Processed)
	saves, _ := cb.counts()
	assert.Equal(t, 0, saves, "record 0 still missing, nothing contiguous yet")

	tr.ManageMsgAck(recs[0], refack.Processed)
	saves, _ = cb.counts()
	assert.Equal(t, 2, saves, "0 and 1 both now contiguous and processed")

	tr.ManageMsgAck(recs[3], refack.Processed)
	saves, _ = cb.counts()
	assert.Equal(t, 2, saves, "record 2 still missing")

	tr.ManageMsgAck(recs[2], refack.Aborted)
	saves, destroys := cb.counts()
	assert.Equal(t, 3, saves, "2 is aborted (no save) but 3 is processed and now contiguous")
	assert.Equal(t, 4, destroys)
}

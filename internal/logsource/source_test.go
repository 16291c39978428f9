package logsource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlog-io/flowlog/internal/acktracker"
	"github.com/flowlog-io/flowlog/internal/bookmark"
	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/refack"
)

func newBookmarkStub() *bookmark.Bookmark {
	return bookmark.New(nil, func(b *bookmark.Bookmark) error { return nil }, func(b *bookmark.Bookmark) {})
}

// S1 — Instant-bookmarkless, same slot, window returns to full after
// one post+ack round trip.
func TestSourcePostAckRestoresWindow(t *testing.T) {
	wakeups := 0
	var delivered *logmsg.LogMessage

	src := New(
		Options{InitWindowSize: 10, StatsID: "s1"},
		acktracker.Factory{Kind: acktracker.KindInstantBookmarkless},
		newBookmarkStub,
		func() { wakeups++ },
		func(m *logmsg.LogMessage) { delivered = m },
	)

	assert.True(t, src.FreeToSend())

	rec := src.RequestBookmark()
	msg := logmsg.NewLocal()
	sess := refack.StartProducer(msg)
	src.Post(msg, rec, sess)

	assert.Same(t, msg, delivered)
	assert.Equal(t, int64(9), src.window.Load())

	// a consumer elsewhere acks the message
	consumerSess := refack.StartConsumer(msg, true)
	consumerSess.Ack(msg, refack.Processed)
	consumerSess.Stop()

	assert.Equal(t, int64(10), src.window.Load())
	assert.Equal(t, 1, wakeups)
}

func TestSourceWindowExhaustionSuspendsSend(t *testing.T) {
	src := New(
		Options{InitWindowSize: 1, StatsID: "s2"},
		acktracker.Factory{Kind: acktracker.KindInstantBookmarkless},
		newBookmarkStub,
		func() {},
		func(m *logmsg.LogMessage) {},
	)

	rec := src.RequestBookmark()
	msg := logmsg.NewLocal()
	sess := refack.StartProducer(msg)
	src.Post(msg, rec, sess)

	assert.False(t, src.FreeToSend(), "window exhausted, reader must suspend")
}

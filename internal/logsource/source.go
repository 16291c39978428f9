// Package logsource implements LogSource: the window/credit control
// and ack-tracker binding a driver sits on top of (spec.md §3.6,
// §4.4).
package logsource

import (
	"go.uber.org/atomic"

	"github.com/flowlog-io/flowlog/internal/acktracker"
	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/refack"
	"github.com/flowlog-io/flowlog/internal/stats"
)

// Options configures a Source at construction (spec.md §3.6).
type Options struct {
	// InitWindowSize is the initial outstanding-message credit.
	InitWindowSize int

	// StatsID labels this source's metrics series.
	StatsID string
}

// WakeupFunc is invoked by the ack path, possibly from a consumer
// goroutine, to tell the reader it may fetch again.
type WakeupFunc func()

// Downstream receives a posted message. It runs synchronously inside
// Post, after the refcache session has been stopped and the ack hook
// installed — the same point the C source hands the message to the
// next LogPipe stage.
type Downstream func(msg *logmsg.LogMessage)

// Source is a LogSource: it owns an AckTracker, tracks outstanding
// window credit, and is the single entry point drivers call to hand a
// fetched message into the pipeline.
type Source struct {
	opts       Options
	tracker    acktracker.Tracker
	window     atomic.Int64
	wakeup     WakeupFunc
	downstream Downstream
}

// New constructs a Source, building its AckTracker from factory.
func New(opts Options, factory acktracker.Factory, newBookmark acktracker.NewBookmarkFunc, wakeup WakeupFunc, downstream Downstream) *Source {
	if factory.WindowSize == 0 {
		factory.WindowSize = opts.InitWindowSize
	}
	s := &Source{
		opts:       opts,
		tracker:    factory.New(newBookmark),
		wakeup:     wakeup,
		downstream: downstream,
	}
	s.window.Store(int64(opts.InitWindowSize))
	stats.WindowRemaining.WithLabelValues(opts.StatsID).Set(float64(opts.InitWindowSize))
	return s
}

// RequestBookmark passes through to the bound tracker, for a reader
// to populate before Post.
func (s *Source) RequestBookmark() *acktracker.Record {
	return s.tracker.RequestBookmark()
}

// FreeToSend reports whether the source currently has outstanding
// window credit (spec.md §4.4 item 4).
func (s *Source) FreeToSend() bool {
	return s.window.Load() > 0
}

// Post debits window_counter, binds msg's ack record and ack hook,
// and consumes sess — the refcache session the caller must have
// opened with refack.StartProducer before calling Post (spec.md §4.4
// item 2, contracts). After Post returns the
// caller may not assume anything about msg's liveness unless it took
// its own separate ref.
func (s *Source) Post(msg *logmsg.LogMessage, rec *acktracker.Record, sess *refack.Session) {
	s.tracker.TrackMsg(rec)
	msg.SetAckRecord(rec)
	msg.SetAckHook(s.ackHook(rec))

	// this edge owes exactly one ack before the message may be freed
	sess.AddAck(msg, 1, false, false)

	s.window.Dec()
	stats.MessagesPosted.WithLabelValues(s.opts.StatsID).Inc()
	stats.WindowRemaining.WithLabelValues(s.opts.StatsID).Set(float64(s.window.Load()))

	sess.Stop()

	if s.downstream != nil {
		s.downstream(msg)
	}
}

// ackHook returns the function installed as msg.ack_hook: forward the
// outcome to the tracker, refill the window, and wake the reader
// (spec.md §4.4 item 3).
func (s *Source) ackHook(rec *acktracker.Record) logmsg.AckHook {
	return func(outcome refack.Outcome) {
		s.tracker.ManageMsgAck(rec, outcome)

		s.window.Inc()
		stats.WindowRemaining.WithLabelValues(s.opts.StatsID).Set(float64(s.window.Load()))
		stats.MessagesAcked.WithLabelValues(s.opts.StatsID, outcome.String()).Inc()

		if s.wakeup != nil {
			s.wakeup()
		}
	}
}

// DisableBookmarkSaving forwards to the bound tracker (spec.md §4.4
// item 5), used on shutdown to discard uncommitted progress.
func (s *Source) DisableBookmarkSaving() {
	s.tracker.DisableBookmarkSaving()
}

// Deinit flushes the bound tracker's pending state.
func (s *Source) Deinit() {
	s.tracker.Deinit()
}

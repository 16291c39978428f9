// Package logreader (continued): Reader is the cooperative fetch loop
// itself. The C source drives this off ivykis callbacks running on one
// thread, with an optional worker-thread pool for the fetch job and a
// mutex+condvar for cross-thread close requests (spec.md §4.5,
// §4.5.3). Go has no implicit per-thread reentrancy to lean on, so
// this becomes an explicit single-goroutine reactor: one `run` loop
// owns all proto/poll state, an events channel serializes every
// trigger onto it, and a one-worker job queue (grounded on
// friggdb/pool/pool.go's workQueue-plus-worker-goroutine shape) plays
// the role of the io-worker-job so a fetch in flight never blocks the
// reactor from noticing a close request.
package logreader

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/logsource"
	"github.com/flowlog-io/flowlog/internal/refack"
	"github.com/flowlog-io/flowlog/internal/stats"
)

type eventKind int

const (
	evReady eventKind = iota
	evRestart
	evIdleTimer
	evWakeup
	evFetchDone
	evClose
)

type readerEvent struct {
	kind   eventKind
	notify NotifyCode
	reply  chan struct{}
}

// Options configures a Reader's fetch loop (spec.md §4.5.2).
type Options struct {
	// FetchLimit bounds how many messages one fetch-loop iteration
	// pulls before yielding back to update_watches.
	FetchLimit int

	// EmptyLines, when true, still builds a LogMessage for a
	// zero-length fetch result.
	EmptyLines bool

	// Stamp, if set, is called on every message this reader builds
	// before it is posted, so a caller can attach process-wide
	// identity (host id, receipt id) without this package needing to
	// know about hostid.Context.
	Stamp func(*logmsg.LogMessage)

	StatsID string
}

// Reader binds a LogProtoServer and PollEvents to a logsource.Source
// and runs the cooperative fetch loop described in spec.md §4.5. Start
// must be called before any event-producing method, and Close exactly
// once to tear it down.
type Reader struct {
	opts   Options
	proto  LogProtoServer
	poll   PollEvents
	source *logsource.Source
	logger log.Logger

	events chan readerEvent
	jobs   chan struct{}

	idleTimer *time.Timer

	// state touched only by the run() goroutine
	handshakeDone  bool
	suspended      bool
	immediateCheck bool
	working        bool
	pendingClose   *readerEvent
	closed         bool
}

// New builds a Reader. Call Start to launch its goroutines.
func New(opts Options, proto LogProtoServer, poll PollEvents, source *logsource.Source, logger log.Logger) *Reader {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 100
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reader{
		opts:   opts,
		proto:  proto,
		poll:   poll,
		source: source,
		logger: logger,
		events: make(chan readerEvent, 16),
		jobs:   make(chan struct{}, 1),
	}
}

// Start launches the reactor goroutine and its single fetch worker,
// then asks update_watches to take its first look.
func (r *Reader) Start() {
	go r.worker()
	go r.run()
	r.Wakeup()
}

// Wakeup posts the wakeup_event a source's ack path fires once
// free_to_send flips back to true (spec.md §4.5.1 "Suspension ends
// only when wakeup_event fires").
func (r *Reader) Wakeup() {
	r.post(readerEvent{kind: evWakeup})
}

// Ready posts fd-readiness, the trigger PollEvents.Arm's wake
// callback should call.
func (r *Reader) Ready() {
	r.post(readerEvent{kind: evReady})
}

func (r *Reader) onIdleTimer() {
	r.post(readerEvent{kind: evIdleTimer})
}

func (r *Reader) post(ev readerEvent) {
	select {
	case r.events <- ev:
	default:
		// events channel is generously buffered (16); a full buffer
		// means the reactor is already backed up with equivalent
		// wakeups, so dropping this one changes nothing it would have
		// done.
	}
}

// Close stops the reactor. If a fetch is in flight it is recorded and
// actually performed once that fetch's job reports back — the Go
// analog of the C source's "if working, perform in work_finished"
// (spec.md §4.5.3). Close blocks until the reactor has actually torn
// down, whichever goroutine calls it.
func (r *Reader) Close() {
	reply := make(chan struct{})
	r.events <- readerEvent{kind: evClose, reply: reply}
	<-reply
}

// run is the reactor: every trigger, including a fetch job's result,
// is serialized through this single goroutine so proto/poll state
// never needs its own lock.
func (r *Reader) run() {
	for {
		ev := <-r.events
		switch ev.kind {
		case evReady, evRestart, evIdleTimer, evWakeup:
			r.updateWatches()
		case evFetchDone:
			r.working = false
			r.handleNotify(ev.notify)
			if r.pendingClose != nil {
				req := r.pendingClose
				r.pendingClose = nil
				r.doClose()
				close(req.reply)
				return
			}
			r.updateWatches()
		case evClose:
			if r.working {
				r.pendingClose = &ev
				continue
			}
			r.doClose()
			close(ev.reply)
			return
		}
	}
}

func (r *Reader) doClose() {
	if r.closed {
		return
	}
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	if r.poll != nil {
		r.poll.Cancel()
	}
	close(r.jobs)
	r.closed = true
}

func (r *Reader) handleNotify(notify NotifyCode) {
	switch notify {
	case NotifyClose:
		level.Info(r.logger).Log("msg", "proto reported eof, closing reader", "source", r.opts.StatsID)
		r.doClose()
	case NotifyReadError:
		level.Warn(r.logger).Log("msg", "proto fetch error", "source", r.opts.StatsID)
	}
}

// startFetch submits the fetch-loop job to the single worker if one
// is not already in flight.
func (r *Reader) startFetch() {
	if r.working || r.closed {
		return
	}
	r.working = true
	select {
	case r.jobs <- struct{}{}:
	default:
		// a job is already queued (shouldn't happen given working
		// gates this), nothing to do.
		r.working = false
	}
}

// worker is the reader's lone io-worker-job: it runs fetchOnce outside
// the reactor goroutine and reports the result back through events,
// mirroring friggdb/pool/pool.go's job-channel-plus-worker shape with
// a single slot instead of a pool.
func (r *Reader) worker() {
	for range r.jobs {
		notify := r.fetchOnce()
		r.events <- readerEvent{kind: evFetchDone, notify: notify}
	}
}

// fetchOnce implements the bounded fetch loop of spec.md §4.5.2.
func (r *Reader) fetchOnce() NotifyCode {
	timer := time.Now()
	defer func() {
		stats.FetchDuration.WithLabelValues(r.opts.StatsID).Observe(time.Since(timer).Seconds())
	}()

	if !r.handshakeDone {
		status, err := r.proto.Handshake()
		if err != nil {
			return NotifyReadError
		}
		switch status {
		case HandshakeSuccess:
			r.handshakeDone = true
		case HandshakeAgain:
			return NotifyNone
		case HandshakeEOF:
			return NotifyClose
		case HandshakeError:
			return NotifyReadError
		}
		if !r.handshakeDone {
			return NotifyNone
		}
	}

	for i := 0; i < r.opts.FetchLimit; i++ {
		rec := r.source.RequestBookmark()
		fr, err := r.proto.Fetch(rec)
		if err != nil {
			return NotifyReadError
		}
		switch fr.Status {
		case FetchEOF:
			return NotifyClose
		case FetchError:
			return NotifyReadError
		case FetchNoData, FetchAgain:
			return NotifyNone
		}
		if fr.Message == nil {
			return NotifyNone
		}
		if len(fr.Message) > 0 || r.opts.EmptyLines {
			msg := BuildMessage(fr.Message, fr.Aux)
			if r.opts.Stamp != nil {
				r.opts.Stamp(msg)
			}
			sess := refack.StartProducer(msg)
			r.source.Post(msg, rec, sess)
			if !r.source.FreeToSend() {
				return NotifyNone
			}
		}
	}

	r.immediateCheck = true
	return NotifyNone
}

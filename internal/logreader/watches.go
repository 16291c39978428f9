package logreader

import (
	"time"

	"github.com/flowlog-io/flowlog/internal/stats"
)

// updateWatches runs the decision table of spec.md §4.5.1. It always
// executes on the reactor goroutine (called only from run()).
func (r *Reader) updateWatches() {
	if r.proto == nil || r.poll == nil || r.closed {
		return
	}

	if !r.source.FreeToSend() {
		r.suspendWatches()
		return
	}

	r.suspended = false
	stats.ReaderSuspended.WithLabelValues(r.opts.StatsID).Set(0)

	if r.immediateCheck {
		r.immediateCheck = false
		r.startFetch()
		return
	}

	prep, err := r.proto.Prepare()
	if err != nil {
		r.handleNotify(NotifyReadError)
		return
	}

	switch prep.Action {
	case ActionPollIO:
		r.armPoll(prep.Cond)
	case ActionForceSchedule:
		r.startFetch()
	case ActionSuspend:
		r.suspendWatches()
	}

	if prep.IdleTimeout > 0 {
		r.armIdleTimer(prep.IdleTimeout)
	}
}

func (r *Reader) armPoll(cond IOCondition) {
	if err := r.poll.Arm(cond, r.Ready); err != nil {
		r.handleNotify(NotifyReadError)
	}
}

func (r *Reader) armIdleTimer(d time.Duration) {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	r.idleTimer = time.AfterFunc(d, r.onIdleTimer)
}

func (r *Reader) suspendWatches() {
	r.suspended = true
	stats.ReaderSuspended.WithLabelValues(r.opts.StatsID).Set(1)
	if r.poll != nil {
		r.poll.Cancel()
	}
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
}

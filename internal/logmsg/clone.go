package logmsg

import "github.com/flowlog-io/flowlog/internal/refack"

// CloneCOW produces a new LogMessage that shares src's payload, tags,
// and sdata slice until the clone (or src) is mutated, at which point
// the mutator copies its own slice (spec.md §3.1 "clone_cow",
// §4.2). src is protected as part of this call, so any later attempt
// to mutate src panics — a clone and its original must never observe
// each other's writes.
//
// The returned message's ack hook forwards to src once its own acks
// fold to zero (see FireAckHook), so acking a clone eventually acks
// its original too. The caller is responsible for opening a producer
// session on the clone; CloneCOW itself only initializes the cell at
// ref=1, ack=0, matching a freshly constructed message.
//
// CloneCOW also takes a strong ref on src, matching the C source's
// log_msg_ref(msg) at clone time: the clone's "original" pointer must
// keep src alive on its own, independent of whatever ref the caller
// that requested the clone happens to be holding. Free releases this
// ref when the clone itself is freed.
func CloneCOW(src *LogMessage) *LogMessage {
	src.Protect()
	refOriginal(src)

	clone := &LogMessage{
		payload: src.payload,
		tags:    src.tags,
		flags:   src.flags &^ (FlagPayloadOwned | FlagTagsOwned | FlagSDataOwned),

		timestamps: src.timestamps,
		pri:        src.pri,
		hostID:     src.hostID,
		rcptID:     src.rcptID,
		saddr:      src.saddr,
		daddr:      src.daddr,

		original: src,
	}
	if len(src.sdata) > 0 {
		clone.sdata = src.sdata // shared until appendSData copies
	}
	clone.cell.Init(1, 0)
	return clone
}

// refOriginal takes a structural ref on original, independent of any
// session the caller may already have open on it.
func refOriginal(original *LogMessage) {
	sess := refack.StartConsumer(original, false)
	sess.Ref(original)
	sess.Stop()
}

// unrefOriginal releases the ref refOriginal took, run from the
// clone's Free.
func unrefOriginal(original *LogMessage) {
	sess := refack.StartConsumer(original, false)
	sess.Unref(original)
	sess.Stop()
}

// StartCloneSession is a convenience wrapper: clone src, open a
// producer session on the clone, and return both. Callers that only
// need the clone (e.g. to mutate then hand off without tracking a
// session across several calls) can use CloneCOW directly instead.
func StartCloneSession(src *LogMessage) (*LogMessage, *refack.Session) {
	clone := CloneCOW(src)
	return clone, refack.StartProducer(clone)
}

// Package logwriter captures the obligations spec.md §4.6 places on
// any consumer-side writer participating in the ack chain: it must
// eventually resolve an ack-needing message with exactly one outcome
// before unref-ing it, and may temporarily upgrade a shared message to
// a private one before mutating it. The package does not ship a
// concrete writer (drivers own that); it ships the session-management
// contract every writer is expected to follow.
package logwriter

import (
	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/refack"
)

// Delivery wraps one message as handed to a writer along with the
// consumer-side refcache session spec.md §4.1 requires it open before
// touching the message, and enforces the §4.6 ack-before-release
// obligation in Go terms: a panic instead of a silent leak.
type Delivery struct {
	msg       *logmsg.LogMessage
	sess      *refack.Session
	ackNeeded bool
	acked     bool
	released  bool
}

// Begin opens a consumer-side session for msg, recording whether the
// edge it arrived on needs an ack (the path option a source set when
// it posted the message).
func Begin(msg *logmsg.LogMessage, ackNeeded bool) *Delivery {
	return &Delivery{
		msg:       msg,
		sess:      refack.StartConsumer(msg, ackNeeded),
		ackNeeded: ackNeeded,
	}
}

// Message returns the message this delivery wraps.
func (d *Delivery) Message() *logmsg.LogMessage { return d.msg }

// Ack records the delivery outcome. A writer MUST call this at most
// once per delivery, and MUST call it before Release if the edge
// needed an ack (spec.md §4.6).
func (d *Delivery) Ack(outcome refack.Outcome) {
	if d.acked {
		panic("logwriter: Ack called more than once for one delivery")
	}
	d.acked = true
	d.sess.Ack(d.msg, outcome)
}

// Release unrefs the message and stops its session. It panics if the
// edge needed an ack and Ack was never called, or if Release was
// already called — both are programmer errors the C source only
// caught (if at all) as a ref leak or a use-after-free.
func (d *Delivery) Release() {
	if d.released {
		panic("logwriter: Release called more than once for one delivery")
	}
	if d.ackNeeded && !d.acked {
		panic("logwriter: released an ack-needing message without acking it first")
	}
	d.released = true
	d.sess.Unref(d.msg)
	d.sess.Stop()
}

// MakeWritable upgrades d's message to a private, mutable copy if it
// is currently protected (protect_cnt>0), matching spec.md §4.6's
// make_writable. If the message was not protected, d is returned
// unchanged. Otherwise the original delivery is released on the
// caller's behalf — the clone's ack hook forwards outcomes back to the
// original (logmsg.CloneCOW), so the original needs its ref dropped
// here but must not be separately acked — and a new Delivery wrapping
// the clone is returned for the caller to use from this point on.
func MakeWritable(d *Delivery) *Delivery {
	if !d.msg.Protected() {
		return d
	}
	clone, sess := logmsg.StartCloneSession(d.msg)
	if d.ackNeeded {
		// the clone takes over the single ack obligation the original
		// delivery carried; declare it on the clone's own session the
		// same way logsource.Source.Post declares it on a freshly
		// posted message.
		sess.AddAck(clone, 1, false, false)
	}
	d.released = true
	d.sess.Unref(d.msg)
	d.sess.Stop()
	return &Delivery{msg: clone, sess: sess, ackNeeded: d.ackNeeded}
}

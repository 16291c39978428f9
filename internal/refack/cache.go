package refack

import "fmt"

// Owner is the minimal surface a cached message must expose back to
// the cache: its packed cell, whether the current path needs acks,
// and what to do when the ack count folds to zero.
//
// A *logmsg.LogMessage satisfies this; it lives in refack (rather than
// logmsg depending on refack for the session type) to keep the
// dependency edge in one direction — logmsg imports refack, not the
// reverse.
type Owner interface {
	Cell() *Cell
	AckNeeded() bool
	// SetAckNeeded records whether the edge this message is currently
	// on participates in acknowledgement. Written once by
	// StartProducer/StartConsumer; read back by AckNeeded when an ack
	// fold decides whether to fire the hook.
	SetAckNeeded(bool)
	// FireAckHook is invoked synchronously, with no cached session
	// active on this message, once the ack field folds to zero.
	FireAckHook(outcome Outcome)
	// Free is called once the ref field drops to zero.
	Free()
}

// Session is a thread-local (goroutine-local, made explicit rather
// than magic — see spec.md §9 "Global state") ref/ack deferral scope
// for a single message on a single goroutine. The C source keyed this
// off actual TLS; Go has no implicit per-goroutine storage, so the
// session is an ordinary value a goroutine must thread through every
// call that would otherwise hit the atomic slow path. This is the
// idiomatic translation: explicit over implicit.
//
// The zero value is not usable; build one with StartProducer or
// StartConsumer.
type Session struct {
	msg        Owner
	cachedRefs int32
	cachedAcks int32
	abort      bool
	suspend    bool
	active     bool
}

// StartProducer begins a producer-side session: called exactly once,
// by the goroutine that constructed msg, before any other goroutine
// can observe it. It biases the real counter so consumer-side cached
// decrements can never transiently read a negative count.
func StartProducer(msg Owner) *Session {
	msg.Cell().Apply(Bias, Bias, false, false)
	msg.SetAckNeeded(true)
	return &Session{
		msg:        msg,
		cachedRefs: -Bias,
		cachedAcks: -Bias,
		active:     true,
	}
}

// StartConsumer begins a consumer-side session for a message handed
// to this goroutine by another one, along with the path options that
// travelled with it.
func StartConsumer(msg Owner, ackNeeded bool) *Session {
	msg.SetAckNeeded(ackNeeded)
	return &Session{
		msg:    msg,
		active: true,
	}
}

func (s *Session) sameMessage(msg Owner) bool {
	return s.active && s.msg == msg
}

// Ref increments the cached ref count for msg if msg is the session's
// current message; otherwise it falls through to the atomic slow
// path on msg's own cell.
func (s *Session) Ref(msg Owner) {
	if s.sameMessage(msg) {
		s.cachedRefs++
		return
	}
	msg.Cell().AddRef(1)
}

// Unref is the inverse of Ref; when the slow-path ref count reaches
// zero the message is freed immediately.
func (s *Session) Unref(msg Owner) {
	if s.sameMessage(msg) {
		s.cachedRefs--
		return
	}
	if st := msg.Cell().AddRef(-1); st.Ref == 0 {
		msg.Free()
	}
}

// AddAck adds delta to the cached (or atomic) ack-pending count and
// OR-combines the abort/suspend sticky flags.
func (s *Session) AddAck(msg Owner, delta int32, abort, suspend bool) {
	if s.sameMessage(msg) {
		s.cachedAcks += delta
		s.abort = s.abort || abort
		s.suspend = s.suspend || suspend
		return
	}
	fireIfZero(msg, msg.Cell().Apply(0, delta, abort, suspend))
}

// Ack is AddAck(msg, -1, ...) — the common single-ack case.
func (s *Session) Ack(msg Owner, outcome Outcome) {
	abort := outcome == Aborted
	suspend := outcome == Suspended
	s.AddAck(msg, -1, abort, suspend)
}

func fireIfZero(msg Owner, st State) {
	if st.Ack == 0 && msg.AckNeeded() {
		msg.FireAckHook(CombinedOutcome(st.Abort, st.Suspend))
	}
}

// Stop folds the cached deltas back into the message's atomic cell,
// in the five-step order spec.md §4.1 requires: anchor the ref count,
// fold acks (firing the hook synchronously if they reach zero),
// release the anchor, then fold refs (freeing the message if that
// drops it to zero).
//
// Stop panics if the cached counters have drifted beyond twice Bias —
// that is a programmer error (the session was kept open across a
// runaway number of ref/ack calls without stopping) rather than a
// recoverable runtime condition, matching the C source's assert
// posture. The threshold is 2*Bias rather than Bias because a
// producer session's cached counters already start at -Bias (the
// sentinel that cancels StartProducer's bias on the real cell); a
// handful of ordinary Ref/Unref or AddAck calls on top of that
// sentinel must not by itself look like abuse.
func (s *Session) Stop() {
	if !s.active {
		return
	}
	if s.cachedAcks <= -2*Bias || s.cachedAcks >= 2*Bias {
		panic(fmt.Sprintf("refack: cached ack delta %d out of window (bias=%d)", s.cachedAcks, Bias))
	}
	if s.cachedRefs <= -2*Bias || s.cachedRefs >= 2*Bias {
		panic(fmt.Sprintf("refack: cached ref delta %d out of window (bias=%d)", s.cachedRefs, Bias))
	}

	cell := s.msg.Cell()

	// 1. anchor
	cell.AddRef(1)

	// 2. fold acks, fire hook synchronously if they drop to zero
	st := cell.Apply(0, s.cachedAcks, s.abort, s.suspend)
	if st.Ack == 0 && s.msg.AckNeeded() {
		s.msg.FireAckHook(CombinedOutcome(st.Abort, st.Suspend))
	}

	// 3. release anchor
	cell.AddRef(-1)

	// 4/5. fold refs; free if they drop to zero
	if final := cell.Apply(s.cachedRefs, 0, false, false); final.Ref == 0 {
		s.msg.Free()
	}

	s.active = false
	s.msg = nil
}

package refack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeMsg is a minimal Owner for exercising Session without depending
// on the logmsg package (which itself depends on refack).
type fakeMsg struct {
	cell      Cell
	ackNeeded bool
	freed     int
	fired     []Outcome
}

func newFakeMsg() *fakeMsg {
	m := &fakeMsg{}
	m.cell.Init(1, 0)
	return m
}

func (m *fakeMsg) Cell() *Cell            { return &m.cell }
func (m *fakeMsg) AckNeeded() bool        { return m.ackNeeded }
func (m *fakeMsg) SetAckNeeded(v bool)    { m.ackNeeded = v }
func (m *fakeMsg) FireAckHook(o Outcome)  { m.fired = append(m.fired, o) }
func (m *fakeMsg) Free()                  { m.freed++ }

func TestProducerSingleRefNoLeak(t *testing.T) {
	m := newFakeMsg()
	sess := StartProducer(m)
	// declare one ack-needing edge, then immediately resolve it, as a
	// producer that both posts and (in this same thread) drains the
	// path would.
	sess.AddAck(m, 1, false, false)
	sess.Ack(m, Processed)
	// the producer drops the reference it has held since construction.
	sess.Unref(m)
	sess.Stop()

	assert.Equal(t, 1, m.freed)
	assert.Equal(t, []Outcome{Processed}, m.fired)
}

func TestProducerMultipleRefsBalanced(t *testing.T) {
	m := newFakeMsg()
	sess := StartProducer(m)
	// two extra refs taken and released, plus the one implicit
	// construction-time ref dropped: net ref delta -1, matching
	// invariant 6 regardless of how many of these were cached.
	sess.Ref(m)
	sess.Ref(m)
	sess.Unref(m)
	sess.Unref(m)
	sess.Unref(m)
	sess.AddAck(m, 1, false, false)
	sess.Ack(m, Processed)
	sess.Stop()

	assert.Equal(t, 1, m.freed, "exactly one free regardless of how many refs were cached")
	assert.Equal(t, []Outcome{Processed}, m.fired)
}

func TestConsumerSessionAckNotNeeded(t *testing.T) {
	m := newFakeMsg()
	// simulate a producer session that already ran and left ref=1, ack=0
	sess := StartConsumer(m, false)
	sess.Ref(m)
	sess.Unref(m)
	sess.Stop()

	assert.Equal(t, 0, m.freed, "ref still held by the implicit producer-side count")
	assert.Empty(t, m.fired)
}

func TestAckHookFiresExactlyOnce(t *testing.T) {
	m := newFakeMsg()
	sess := StartProducer(m)
	sess.AddAck(m, 2, false, false)
	sess.Ack(m, Processed)
	sess.Ack(m, Processed)
	sess.Stop()

	assert.Len(t, m.fired, 1, "ack hook must fire exactly once")
}

func TestStopPanicsOnOversizedCache(t *testing.T) {
	m := newFakeMsg()
	sess := StartProducer(m)
	sess.cachedRefs = 2 * Bias
	assert.Panics(t, func() { sess.Stop() })
}

func TestSuspendBeatsAbortBeatsProcessed(t *testing.T) {
	assert.Equal(t, Suspended, CombinedOutcome(true, true))
	assert.Equal(t, Aborted, CombinedOutcome(true, false))
	assert.Equal(t, Processed, CombinedOutcome(false, false))
}

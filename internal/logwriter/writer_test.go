package logwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/refack"
)

func TestDeliveryAckThenReleaseFiresHook(t *testing.T) {
	msg := logmsg.NewLocal()
	producer := refack.StartProducer(msg)
	producer.AddAck(msg, 1, false, false)
	producer.Stop()

	var fired refack.Outcome
	gotHook := false
	msg.SetAckHook(func(o refack.Outcome) { gotHook = true; fired = o })

	d := Begin(msg, true)
	d.Ack(refack.Processed)
	d.Release()

	assert.True(t, gotHook)
	assert.Equal(t, refack.Processed, fired)
}

func TestReleaseWithoutAckPanicsWhenAckNeeded(t *testing.T) {
	msg := logmsg.NewLocal()
	producer := refack.StartProducer(msg)
	producer.AddAck(msg, 1, false, false)
	producer.Stop()

	d := Begin(msg, true)
	assert.Panics(t, func() { d.Release() })
}

func TestReleaseWithoutAckOKWhenAckNotNeeded(t *testing.T) {
	msg := logmsg.NewLocal()
	producer := refack.StartProducer(msg)
	producer.Stop()

	d := Begin(msg, false)
	assert.NotPanics(t, func() { d.Release() })
}

func TestMakeWritableClonesProtectedMessage(t *testing.T) {
	msg := logmsg.NewLocal()
	producer := refack.StartProducer(msg)
	producer.AddAck(msg, 1, false, false)
	producer.Stop()

	var fired refack.Outcome
	gotHook := false
	msg.SetAckHook(func(o refack.Outcome) { gotHook = true; fired = o })

	msg.Protect() // simulate a second reader holding a shared view

	d := Begin(msg, true)
	writable := MakeWritable(d)
	assert.NotSame(t, msg, writable.Message())

	writable.Ack(refack.Aborted)
	writable.Release()

	assert.True(t, gotHook, "acking the clone must forward the outcome to the original")
	assert.Equal(t, refack.Aborted, fired)
}

package logmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlog-io/flowlog/internal/refack"
)

func TestNewLocalHasRefOne(t *testing.T) {
	m := NewLocal()
	st := m.Cell().Load()
	assert.Equal(t, int32(1), st.Ref)
	assert.Equal(t, int32(0), st.Ack)
	assert.True(t, m.HasFlag(FlagLocal))
}

func TestSetGetValueRoundTrip(t *testing.T) {
	m := NewLocal()
	h := HandleForName("example.field")
	ok := m.SetValue(h, []byte("hello"))
	assert.True(t, ok)

	v, found := m.GetValue(h)
	assert.True(t, found)
	assert.Equal(t, "hello", string(v))
}

func TestSetValueByNameTracksSData(t *testing.T) {
	m := NewLocal()
	ok := m.SetValueByName(".SDATA.foo@1.bar", []byte("1"))
	assert.True(t, ok)
	assert.Len(t, m.SData(), 1)

	// setting the same field twice must not duplicate the sdata entry
	m.SetValueByName(".SDATA.foo@1.bar", []byte("2"))
	assert.Len(t, m.SData(), 1)
}

func TestProtectForcesPanicOnMutate(t *testing.T) {
	m := NewLocal()
	m.Protect()
	assert.Panics(t, func() {
		m.SetPri(5)
	})
}

func TestSetTagOverflow(t *testing.T) {
	m := NewLocal()
	err := m.SetTag(MaxTagID + 1)
	assert.Error(t, err)
	var overflow *TagOverflowError
	assert.ErrorAs(t, err, &overflow)
}

func TestAckHookFiresOnProducerSessionClose(t *testing.T) {
	m := NewLocal()
	var got refack.Outcome
	fired := false
	m.SetAckHook(func(o refack.Outcome) {
		fired = true
		got = o
	})

	sess := refack.StartProducer(m)
	sess.AddAck(m, 1, false, false)
	sess.Ack(m, refack.Processed)
	sess.Stop()

	assert.True(t, fired)
	assert.Equal(t, refack.Processed, got)
}

func TestDoubleFreePanics(t *testing.T) {
	m := NewLocal()
	m.Free()
	assert.Panics(t, func() { m.Free() })
}

package refack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellInitLoad(t *testing.T) {
	var c Cell
	c.Init(1, 0)
	st := c.Load()
	assert.Equal(t, int32(1), st.Ref)
	assert.Equal(t, int32(0), st.Ack)
	assert.False(t, st.Abort)
	assert.False(t, st.Suspend)
}

func TestCellApplyRefAck(t *testing.T) {
	var c Cell
	c.Init(1, 0)

	c.AddRef(1)
	st := c.Load()
	assert.Equal(t, int32(2), st.Ref)

	st = c.Apply(-1, 3, false, false)
	assert.Equal(t, int32(1), st.Ref)
	assert.Equal(t, int32(3), st.Ack)
}

func TestCellStickyAbortSuspend(t *testing.T) {
	var c Cell
	c.Init(1, 1)

	st := c.Apply(0, 0, true, false)
	assert.True(t, st.Abort)

	// once sticky, further non-setting applies must not clear it
	st = c.Apply(0, 0, false, false)
	assert.True(t, st.Abort)

	st = c.Apply(0, 0, false, true)
	assert.True(t, st.Abort)
	assert.True(t, st.Suspend)
}

func TestCombinedOutcomePriority(t *testing.T) {
	assert.Equal(t, Suspended, CombinedOutcome(true, true))
	assert.Equal(t, Aborted, CombinedOutcome(true, false))
	assert.Equal(t, Processed, CombinedOutcome(false, false))
}

func TestBiasRoundTrip(t *testing.T) {
	var c Cell
	c.Init(0, 0)
	c.Apply(Bias, Bias, false, false)
	st := c.Load()
	assert.Equal(t, Bias, st.Ref)
	assert.Equal(t, Bias, st.Ack)

	st = c.Apply(-Bias+1, -Bias+1, false, false)
	assert.Equal(t, int32(1), st.Ref)
	assert.Equal(t, int32(1), st.Ack)
}

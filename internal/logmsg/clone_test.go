package logmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlog-io/flowlog/internal/refack"
)

func TestCloneTransparentAck(t *testing.T) {
	original := NewLocal()
	var originalOutcome refack.Outcome
	originalFired := false
	original.SetAckHook(func(o refack.Outcome) {
		originalFired = true
		originalOutcome = o
	})

	// original declares one ack owed (the clone-to-come) and closes
	// its producer session before being cloned.
	origSess := refack.StartProducer(original)
	origSess.AddAck(original, 1, false, false)
	origSess.Stop()

	clone := CloneCOW(original)
	cloneSess := refack.StartProducer(clone)
	cloneSess.AddAck(clone, 1, false, false)
	cloneSess.Ack(clone, refack.Suspended)
	cloneSess.Stop()

	assert.True(t, originalFired, "acking the clone must eventually ack the original")
	assert.Equal(t, refack.Suspended, originalOutcome)
}

func TestCloneSetValueDoesNotMutateOriginal(t *testing.T) {
	original := NewLocal()
	h := HandleForName("shared.field")
	original.SetValue(h, []byte("orig"))

	clone := CloneCOW(original)
	clone.SetValue(h, []byte("clone"))

	v, _ := original.GetValue(h)
	assert.Equal(t, "orig", string(v))

	v, _ = clone.GetValue(h)
	assert.Equal(t, "clone", string(v))
}

func TestCloneProtectsOriginal(t *testing.T) {
	original := NewLocal()
	_ = CloneCOW(original)

	assert.Panics(t, func() {
		original.SetPri(1)
	}, "original must be protected once a clone exists")
}

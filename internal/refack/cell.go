// Package refack implements the packed reference/ack counter that
// drives a LogMessage's lifecycle: a single atomic word holding a ref
// count, an ack-pending count, and two sticky outcome bits.
package refack

import "sync/atomic"

const (
	refBits  = 15
	ackShift = refBits
	ackBits  = 15
	refMask  = uint32(1<<refBits) - 1
	ackMask  = uint32(1<<ackBits) - 1

	abortBit    = uint32(1) << 30
	suspendBit  = uint32(1) << 31
	outcomeBits = abortBit | suspendBit

	// Bias pre-loads the ref/ack fields so a producer thread's cached
	// decrements never observe a transient negative count. See
	// StartProducer.
	Bias = int32(0x2000)

	// MaxCount is the largest value either 15-bit field can hold.
	MaxCount = int32(refMask)
)

// Cell is the packed counter. Zero value is a valid cell with ref=0,
// ack=0, no sticky bits set — callers normally start one at ref=1 via
// Init.
type Cell struct {
	word atomic.Uint32
}

// State is an unpacked snapshot of a Cell.
type State struct {
	Ref     int32
	Ack     int32
	Abort   bool
	Suspend bool
}

func unpack(w uint32) State {
	return State{
		Ref:     int32(w & refMask),
		Ack:     int32((w >> ackShift) & ackMask),
		Abort:   w&abortBit != 0,
		Suspend: w&suspendBit != 0,
	}
}

func pack(s State) uint32 {
	w := uint32(s.Ref) & refMask
	w |= (uint32(s.Ack) & ackMask) << ackShift
	if s.Abort {
		w |= abortBit
	}
	if s.Suspend {
		w |= suspendBit
	}
	return w
}

// Init sets the cell to an initial ref/ack pair with no sticky bits.
// Not safe to call concurrently with other accessors; meant for
// construction only.
func (c *Cell) Init(ref, ack int32) {
	c.word.Store(pack(State{Ref: ref, Ack: ack}))
}

// Load returns the current unpacked state.
func (c *Cell) Load() State {
	return unpack(c.word.Load())
}

// Apply atomically adds refDelta/ackDelta to the respective fields
// and OR-combines the sticky abort/suspend flags, returning the
// resulting state.
func (c *Cell) Apply(refDelta, ackDelta int32, abort, suspend bool) State {
	for {
		old := c.word.Load()
		cur := unpack(old)
		next := State{
			Ref:     cur.Ref + refDelta,
			Ack:     cur.Ack + ackDelta,
			Abort:   cur.Abort || abort,
			Suspend: cur.Suspend || suspend,
		}
		neu := pack(next)
		if c.word.CompareAndSwap(old, neu) {
			return next
		}
	}
}

// AddRef is Apply(delta, 0, false, false).
func (c *Cell) AddRef(delta int32) State {
	return c.Apply(delta, 0, false, false)
}

// AddAck is Apply(0, delta, false, false).
func (c *Cell) AddAck(delta int32) State {
	return c.Apply(0, delta, false, false)
}

// Outcome reports the combined ack outcome priority: SUSPENDED >
// ABORTED > PROCESSED.
type Outcome int

const (
	Processed Outcome = iota
	Aborted
	Suspended
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "PROCESSED"
	case Aborted:
		return "ABORTED"
	case Suspended:
		return "SUSPENDED"
	default:
		return "UNKNOWN"
	}
}

// CombinedOutcome applies the priority rule from spec.md §8.2.
func CombinedOutcome(abort, suspend bool) Outcome {
	switch {
	case suspend:
		return Suspended
	case abort:
		return Aborted
	default:
		return Processed
	}
}

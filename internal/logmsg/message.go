package logmsg

import (
	"net"
	"sync/atomic"

	"github.com/flowlog-io/flowlog/internal/refack"
)

// Flags records ownership of heap buffers and a handful of sticky
// message properties (spec.md §3.1).
type Flags uint32

const (
	FlagPayloadOwned Flags = 1 << iota
	FlagTagsOwned
	FlagSDataOwned
	FlagSAddrOwned
	FlagLocal
	FlagInternal
	FlagMark
	FlagChainedHostname
)

// TimestampIndex selects one of the three timestamps a message
// carries.
type TimestampIndex int

const (
	TimestampStamp TimestampIndex = iota
	TimestampRecvd
	TimestampProcessed

	numTimestamps
)

// Timestamp is seconds + microseconds + a GMT offset in seconds,
// matching the C source's timeutils split (spec.md §3.1).
type Timestamp struct {
	Sec    int64
	Usec   int32
	GMTOff int32
	Set    bool // PROCESSED may be unset; STAMP/RECVD are always set
}

// AckHook is invoked exactly once, synchronously, when a message's
// pending-ack count folds to zero on an edge that needed acks.
type AckHook func(outcome refack.Outcome)

// MaxSDataEntries caps the number of structured-data handles tracked
// per message (spec.md §3.1).
const MaxSDataEntries = 255

// LogMessage is one log record in flight through the pipeline.
type LogMessage struct {
	cell refack.Cell

	payload *nvTable
	tags    *tagSet
	sdata   []Handle

	timestamps [numTimestamps]Timestamp
	pri        int

	hostID uint32
	rcptID uint64

	saddr, daddr net.Addr

	original *LogMessage
	ackHook  AckHook

	flags       Flags
	protectCnt  int32 // atomic; non-zero forbids in-place mutation
	ackNeeded   atomic.Bool
	ackRecord   any // back-pointer to the owning AckTracker's slot

	freed atomic.Bool // guards against double free, asserts invariant #1
}

// newBase allocates the structures every constructor shares: an
// unshared payload/tag set, ref=1, ack=0.
func newBase() *LogMessage {
	m := &LogMessage{
		payload: newNVTable(),
		tags:    newTagSet(),
	}
	m.flags |= FlagPayloadOwned | FlagTagsOwned | FlagSDataOwned
	m.cell.Init(1, 0)
	return m
}

// NewLocal constructs a message originated internally by this process
// (e.g. synthesized diagnostics), matching logmsg_new_local.
func NewLocal() *LogMessage {
	m := newBase()
	m.flags |= FlagLocal
	return m
}

// NewInternal constructs a message for internal-message-facility
// traffic (spec.md §7 "logged via the internal message facility").
func NewInternal() *LogMessage {
	m := newBase()
	m.flags |= FlagInternal
	return m
}

// NewMark constructs a MARK message: a heartbeat record carrying no
// payload beyond the MARK flag.
func NewMark() *LogMessage {
	m := newBase()
	m.flags |= FlagMark
	return m
}

// New constructs an empty message carrying saddr as its source
// address. Parsing itself is out of scope (spec.md §1); callers populate the payload with
// SetValue after construction.
func New(saddr net.Addr) *LogMessage {
	m := newBase()
	m.saddr = saddr
	if saddr != nil {
		m.flags |= FlagSAddrOwned
	}
	return m
}

// Cell implements refack.Owner.
func (m *LogMessage) Cell() *refack.Cell { return &m.cell }

// AckNeeded implements refack.Owner.
func (m *LogMessage) AckNeeded() bool { return m.ackNeeded.Load() }

// SetAckNeeded implements refack.Owner.
func (m *LogMessage) SetAckNeeded(v bool) { m.ackNeeded.Store(v) }

// SetAckHook installs the function invoked when this message's acks
// fold to zero. If original is set, the hook chains: it acks original
// with the same outcome after running hook (spec.md §3.1, §4.2).
func (m *LogMessage) SetAckHook(hook AckHook) {
	m.ackHook = hook
}

// FireAckHook implements refack.Owner. It runs the installed hook (if
// any) and then, if this message is a clone, forwards the same
// outcome to the original — forming the ack chain spec.md §3.1 and
// §8.7 require.
func (m *LogMessage) FireAckHook(outcome refack.Outcome) {
	if m.ackHook != nil {
		m.ackHook(outcome)
	}
	if m.original != nil {
		forwardAck(m.original, outcome)
	}
}

// forwardAck acks original with outcome using a fresh consumer
// session, since the forwarding goroutine does not necessarily have
// an open session on original.
func forwardAck(original *LogMessage, outcome refack.Outcome) {
	sess := refack.StartConsumer(original, true)
	sess.Ack(original, outcome)
	sess.Stop()
}

// Free implements refack.Owner. It is only ever called by refack once
// the ref field has dropped to zero; it asserts that happens exactly
// once (spec.md §8.1 "no leaks"). If this message is a clone, it also
// releases the ref CloneCOW took on original — the inverse of
// log_msg_ref/log_msg_unref pairing in the C source.
func (m *LogMessage) Free() {
	if !m.freed.CompareAndSwap(false, true) {
		panic("logmsg: double free of LogMessage")
	}
	if m.original != nil {
		unrefOriginal(m.original)
	}
	m.original = nil
	m.ackHook = nil
}

// Protect increments protect_cnt, forcing later mutators onto the
// clone-on-write path (spec.md §3.1, §4.2). CloneCOW calls this on
// the source as its first step.
func (m *LogMessage) Protect() {
	atomic.AddInt32(&m.protectCnt, 1)
}

func (m *LogMessage) isProtected() bool {
	return atomic.LoadInt32(&m.protectCnt) > 0
}

// Protected reports whether m currently has protect_cnt>0, i.e.
// whether a writer must clone before mutating it in place
// (spec.md §4.6 "make_writable").
func (m *LogMessage) Protected() bool {
	return m.isProtected()
}

// Pri returns the syslog priority (facility<<3 | severity).
func (m *LogMessage) Pri() int { return m.pri }

// SetPri sets the priority. Like all in-place setters, it panics if
// the message is protected — callers must clone first.
func (m *LogMessage) SetPri(pri int) {
	m.mustBeWritable()
	m.pri = pri
}

func (m *LogMessage) mustBeWritable() {
	if m.isProtected() {
		panic("logmsg: attempt to mutate a protected message in place; clone first")
	}
}

// Timestamp returns the timestamp at idx.
func (m *LogMessage) Timestamp(idx TimestampIndex) Timestamp {
	return m.timestamps[idx]
}

// SetTimestamp sets the timestamp at idx.
func (m *LogMessage) SetTimestamp(idx TimestampIndex, ts Timestamp) {
	m.mustBeWritable()
	ts.Set = true
	m.timestamps[idx] = ts
}

// SetHostID / HostID / SetRcptID / RcptID carry the process-wide
// identifiers assigned at parse time (spec.md §3.1, §C).
func (m *LogMessage) SetHostID(id uint32)  { m.hostID = id }
func (m *LogMessage) HostID() uint32       { return m.hostID }
func (m *LogMessage) SetRcptID(id uint64)  { m.rcptID = id }
func (m *LogMessage) RcptID() uint64       { return m.rcptID }

// SAddr / DAddr are the optional source/destination socket addresses.
func (m *LogMessage) SAddr() net.Addr { return m.saddr }
func (m *LogMessage) DAddr() net.Addr { return m.daddr }
func (m *LogMessage) SetDAddr(a net.Addr) {
	m.mustBeWritable()
	m.daddr = a
}

// HasFlag / SetFlag manage the sticky flag bits.
func (m *LogMessage) HasFlag(f Flags) bool { return m.flags&f != 0 }
func (m *LogMessage) SetFlag(f Flags) {
	m.mustBeWritable()
	m.flags |= f
}

// Original returns the pre-clone message this one was derived from,
// or nil.
func (m *LogMessage) Original() *LogMessage { return m.original }

// AckRecord / SetAckRecord are the back-pointer an AckTracker installs
// so LogSource.Post can bind the message to the tracker's current
// slot (spec.md §3.5, §4.4).
func (m *LogMessage) AckRecord() any        { return m.ackRecord }
func (m *LogMessage) SetAckRecord(r any)    { m.ackRecord = r }

// GetValue reads handle h from the payload.
func (m *LogMessage) GetValue(h Handle) ([]byte, bool) {
	return m.payload.get(h)
}

// SetValue writes handle h into the payload. Returns false
// (PersistFull, spec.md §7) if h is at or beyond maxPayloadHandle —
// the value is then not stored but the message is
// still delivered without that field.
func (m *LogMessage) SetValue(h Handle, value []byte) bool {
	m.mustBeWritable()
	if !m.HasFlag(FlagPayloadOwned) {
		m.payload = m.payload.clone()
		m.flags |= FlagPayloadOwned
	}
	return m.payload.set(h, value)
}

// SetValueByName is SetValue keyed by name instead of a pre-resolved
// handle; if name is a structured-data field not seen before on this
// message, it is appended to sdata (capped at MaxSDataEntries).
func (m *LogMessage) SetValueByName(name string, value []byte) bool {
	h := HandleForName(name)
	ok := m.SetValue(h, value)
	if ok && IsSDataName(name) {
		m.appendSData(h)
	}
	return ok
}

func (m *LogMessage) appendSData(h Handle) {
	for _, existing := range m.sdata {
		if existing == h {
			return
		}
	}
	if len(m.sdata) >= MaxSDataEntries {
		return
	}
	m.mustBeWritable()
	if !m.HasFlag(FlagSDataOwned) {
		cp := make([]Handle, len(m.sdata))
		copy(cp, m.sdata)
		m.sdata = cp
		m.flags |= FlagSDataOwned
	}
	m.sdata = append(m.sdata, h)
}

// SData returns the ordered list of structured-data handles.
func (m *LogMessage) SData() []Handle { return m.sdata }

// SetTag sets tag id. Returns a *TagOverflowError if id > MaxTagID
// (spec.md §7 TagOverflow).
func (m *LogMessage) SetTag(id int) error {
	m.mustBeWritable()
	if !m.HasFlag(FlagTagsOwned) {
		m.tags = m.tags.clone()
		m.flags |= FlagTagsOwned
	}
	return m.tags.set(id)
}

// ClearTag clears tag id.
func (m *LogMessage) ClearTag(id int) {
	m.mustBeWritable()
	if !m.HasFlag(FlagTagsOwned) {
		m.tags = m.tags.clone()
		m.flags |= FlagTagsOwned
	}
	m.tags.clear(id)
}

// HasTag reports whether tag id is set.
func (m *LogMessage) HasTag(id int) bool {
	return m.tags.has(id)
}

// Package logreader implements the cooperative fetch loop that sits
// between a LogProtoServer (wire framing) and a LogSource (spec.md
// §4.5). The C source interleaves callbacks via ivykis timers and
// events; here that becomes a single-goroutine reactor consuming an
// explicit event channel (spec.md §9 "Coroutine control flow").
package logreader

import (
	"time"

	"github.com/flowlog-io/flowlog/internal/acktracker"
	"github.com/flowlog-io/flowlog/internal/logmsg"
)

// IOCondition mirrors the GIOCondition bitmask a proto's Prepare asks
// the reader to watch for.
type IOCondition int

const (
	CondNone  IOCondition = 0
	CondRead  IOCondition = 1 << iota
	CondWrite
)

// Action is what Prepare asks the reader's update_watches to do next
// (spec.md §4.5.1).
type Action int

const (
	ActionPollIO Action = iota
	ActionForceSchedule
	ActionSuspend
)

// PrepareResult is LogProtoServer.Prepare's return value.
type PrepareResult struct {
	Action      Action
	Cond        IOCondition
	IdleTimeout time.Duration // > 0 arms the idle timer in addition to Action
}

// FetchStatus is the outcome of one LogProtoServer.Fetch call.
type FetchStatus int

const (
	FetchSuccess FetchStatus = iota
	FetchAgain
	FetchNoData
	FetchEOF
	FetchError
)

// FetchResult is LogProtoServer.Fetch's return value. Message is nil
// when Status is anything other than FetchSuccess.
type FetchResult struct {
	Status  FetchStatus
	Message []byte
	Aux     map[string][]byte
	MayRead bool
}

// HandshakeStatus is the outcome of a LogProtoServer.Handshake call.
type HandshakeStatus int

const (
	HandshakeSuccess HandshakeStatus = iota
	HandshakeAgain
	HandshakeEOF
	HandshakeError
)

// NotifyCode is what a fetch-loop iteration reports back to the
// reader's main loop once it stops looping (spec.md §4.5.2).
type NotifyCode int

const (
	NotifyNone NotifyCode = iota
	NotifyClose
	NotifyReadError
	NotifySuccess
)

// LogProtoServer parses framed bytes into messages (spec.md §4.5).
// Parsing itself (the byte→LogMessage transform) is out of scope;
// Fetch returns raw bytes plus aux k/v pairs and the reader builds the
// LogMessage.
type LogProtoServer interface {
	Prepare() (PrepareResult, error)
	Fetch(rec *acktracker.Record) (FetchResult, error)
	Handshake() (HandshakeStatus, error)
}

// PollEvents represents fd readiness. Arm requests a wakeup (posted
// to the reader's event channel as an evReady event) once cond is
// satisfied; Cancel withdraws a prior Arm.
type PollEvents interface {
	Arm(cond IOCondition, wake func()) error
	Cancel()
}

// BuildMessage turns one fetched record into a LogMessage, attaching
// aux k/v pairs as payload fields. It is the reader's equivalent of
// logmsg_new_via_proto_fetch — parsing itself is still out of scope
// (spec.md §1), so this only wires bytes into the MESSAGE field and
// aux pairs into their named handles.
func BuildMessage(raw []byte, aux map[string][]byte) *logmsg.LogMessage {
	msg := logmsg.New(nil)
	msg.SetValueByName("MESSAGE", raw)
	for k, v := range aux {
		msg.SetValueByName(k, v)
	}
	return msg
}

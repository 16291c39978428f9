package logreader

// NoopPoll is a PollEvents that never arms anything. Use it for a
// LogProtoServer whose Prepare always returns ActionForceSchedule or
// ActionSuspend and so never watches a raw fd (spec.md §4.5.1) — a nil
// poll leaves update_watches permanently disabled, so a proto like
// this one still needs a real, if inert, PollEvents value.
type NoopPoll struct{}

func (NoopPoll) Arm(cond IOCondition, wake func()) error { return nil }
func (NoopPoll) Cancel()                                 {}

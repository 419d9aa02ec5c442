package conference

import (
	"github.com/jitsi-contrib/focus/pkg/common"
	"github.com/jitsi-contrib/focus/pkg/signaling"
)

// Engine is a Conference's mailbox. Each unit of mailbox work is a closure
// capturing whatever the caller needs applied against the Conference's
// exclusively-owned state. This
// realizes spec.md §5 option (a) — "per-conference mailbox with a single
// worker goroutine processing events one at a time" — on top of the
// existing common.Worker[T] primitive, generalized here to T = func()
// instead of a fixed task struct, since a Conference's inbound events are
// heterogeneous (room events, Jingle IQs, engine-internal follow-ups like a
// bridge fault callback).
type Engine struct {
	conference *Conference
	worker     *common.Worker[func()]
}

// NewEngine wraps conference with a mailbox worker. Room events are submitted
// via HandleRoomEvent, which uses Submit; everything submitted runs
// serialized with respect to each other on one goroutine. Inbound Jingle IQs
// are not routed here.
func NewEngine(conference *Conference) *Engine {
	worker := common.StartWorker(common.WorkerConfig[func()]{
		ChannelSize: common.UnboundedChannelSize,
		Timeout:     0,
		OnTimeout:   func() {},
		OnTask:      func(task func()) { task() },
	})
	return &Engine{conference: conference, worker: worker}
}

// Submit enqueues fn to run on the conference's mailbox worker. Submit never
// blocks the caller on fn's execution.
func (e *Engine) Submit(fn func()) error {
	return e.worker.Send(fn)
}

// Stop closes the mailbox; further Submit calls fail.
func (e *Engine) Stop() {
	e.worker.Stop()
}

// HandleRoomEvent dispatches one signaling.RoomEvent onto the mailbox.
func (e *Engine) HandleRoomEvent(evt signaling.RoomEvent, adapterFor func(string) signaling.JingleAdapter) {
	e.Submit(func() {
		switch ev := evt.(type) {
		case signaling.MemberJoined:
			e.conference.MemberJoined(ev.Member, adapterFor(ev.Member.EndpointID))
		case signaling.MemberLeft:
			e.conference.MemberLeft(ev.EndpointID)
		case signaling.MemberKicked:
			e.conference.MemberKicked(ev.EndpointID, ev.Actor, ev.Reason)
		case signaling.MemberPresenceChanged:
			e.conference.PresenceChanged(ev.Member)
		}
	})
}

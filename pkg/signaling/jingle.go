package signaling

import "github.com/jitsi-contrib/focus/pkg/source"

// JingleAction is the Jingle action attribute of an outgoing/incoming IQ
// (XEP-0166 §7.2, restricted to the subset spec.md §4.5 names).
type JingleAction string

const (
	ActionSessionInitiate JingleAction = "session-initiate"
	ActionSessionAccept   JingleAction = "session-accept"
	ActionSessionTerminate JingleAction = "session-terminate"
	ActionContentModify   JingleAction = "content-modify"
	ActionSourceAdd       JingleAction = "addsource"
	ActionSourceRemove    JingleAction = "removesource"
	ActionTransportReplace JingleAction = "transport-replace"
)

// Content is one Jingle <content> element: a named media description plus
// its transport/payload details, opaque to everything above the signaling
// package. pkg/jingle only ever copies these around; it never parses them.
type Content struct {
	Name    string
	Creator string
	Senders string
	Payload []byte
}

// JingleRequest is one inbound Jingle IQ, queued on the receiving adapter's
// Requests channel. pkg/conference does not read that channel.
type JingleRequest struct {
	From     string // endpointId
	SID      string
	Action   JingleAction
	Contents []Content
	// Reply must be called exactly once by the handler, with either a nil
	// error (plain ack) or a *StanzaError to send back as an IQ error.
	Reply func(err error)
}

// SourcesPayload carries the source view attached to an outgoing Jingle IQ:
// a full view for session-initiate/transport-replace, or an add/remove pair
// for source-add/source-remove.
type SourcesPayload struct {
	Add    source.ConferenceSourceMap
	Remove source.ConferenceSourceMap
}

// JingleAdapter sends Jingle IQs to one participant and supplies a stream of
// inbound Jingle IQs addressed to the focus. A conference owns one adapter
// per participant endpoint.
type JingleAdapter interface {
	// Send delivers action with the given contents and sources to the
	// participant tracked by this adapter, blocking until acknowledged or a
	// *StanzaError/timeout occurs.
	Send(sid string, action JingleAction, contents []Content, sources SourcesPayload, additionalExtensions []byte) error

	// Requests returns the stream of inbound Jingle IQs from this participant.
	Requests() <-chan JingleRequest
}

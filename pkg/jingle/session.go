// Package jingle implements the per-participant Jingle offer/answer state
// machine (spec.md §4.5). A Session is pure state plus transition logic; it
// never touches the network itself, that's signaling.JingleAdapter's job.
package jingle

import (
	"fmt"
	"sync/atomic"
)

// State is one of the three states a Session can be in.
type State int

const (
	Pending State = iota
	Active
	Ended
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason records why a session transitioned to Ended, for logging and for
// deciding whether an outgoing terminate IQ is still needed.
type EndReason string

const (
	ReasonReplaced       EndReason = "replaced"
	ReasonSuccess        EndReason = "success"
	ReasonFailedTransport EndReason = "failed-transport"
	ReasonGone           EndReason = "gone"
	ReasonKicked         EndReason = "kicked"
)

var sidCounter atomic.Uint64

// NextSID generates a new, process-unique Jingle session id. sids are never
// reused within a participant's lifetime (spec.md §4.5 sid monotonicity).
func NextSID(endpointID string) string {
	return fmt.Sprintf("%s-%d", endpointID, sidCounter.Add(1))
}

// Session is the offer/answer state machine owning exactly one negotiation
// with one endpoint at a time. It is owned by exactly one Participant; the
// Participant replaces it wholesale on restart rather than mutating SID.
type Session struct {
	sid            string
	peer           string
	state          State
	useJSONSources bool
	endReason      EndReason
}

// New creates a fresh Pending session with a new sid.
func New(endpointID, peer string, useJSONSources bool) *Session {
	return &Session{
		sid:            NextSID(endpointID),
		peer:           peer,
		state:          Pending,
		useJSONSources: useJSONSources,
	}
}

func (s *Session) SID() string            { return s.sid }
func (s *Session) Peer() string           { return s.peer }
func (s *Session) State() State           { return s.state }
func (s *Session) UseJSONSources() bool   { return s.useJSONSources }
func (s *Session) EndReason() EndReason   { return s.endReason }
func (s *Session) IsActive() bool         { return s.state == Active }
func (s *Session) IsEnded() bool          { return s.state == Ended }

// Accept transitions Pending → Active on an inbound session-accept or
// transport-accept. Accepting a session that is not Pending is a no-op
// returning false, since a stale sid should already have been rejected by
// ValidateIncoming before Accept is ever called.
func (s *Session) Accept() bool {
	if s.state != Pending {
		return false
	}
	s.state = Active
	return true
}

// End transitions to Ended from any state. Ending an already-Ended session
// is idempotent.
func (s *Session) End(reason EndReason) {
	if s.state == Ended {
		return
	}
	s.state = Ended
	s.endReason = reason
}

// OwnsSID reports whether sid is the session currently tracked, the check
// spec.md §4.5 requires before applying any incoming IQ's side effects.
func (s *Session) OwnsSID(sid string) bool {
	return s != nil && s.sid == sid
}

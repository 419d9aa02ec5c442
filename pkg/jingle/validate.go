package jingle

import (
	"github.com/jitsi-contrib/focus/pkg/signaling"
)

// Role is a minimal local role type, so this package does not import
// pkg/participant; validators take the minimal facts they need as plain
// arguments instead of a full Participant.
type Role int

const (
	RoleVisitor Role = iota
	RoleOther
)

// ValidateIncoming applies spec.md §4.5's request-validation rules given the
// participant's currently-owned session. isJigasi relaxes strict sid
// ordering for transport-info only, logged as a warning by the caller.
func ValidateIncoming(current *Session, sid string, action signaling.JingleAction, role Role, isJigasi bool) *signaling.StanzaError {
	if current == nil || !current.OwnsSID(sid) {
		if isJigasi && action == "transport-info" {
			return nil
		}
		return signaling.ItemNotFound("no session with sid %q", sid)
	}

	if role == RoleVisitor && (action == signaling.ActionSessionAccept || action == signaling.ActionSourceAdd) {
		return signaling.Forbidden("visitors may not add sources or accept a session")
	}

	return nil
}

// ValidateSources checks that every group references only ssrcs present in
// sources, returning a bad-request error naming the first offending group.
// unknownGroupSsrc is supplied by the caller after cross-checking the
// decoded sources against the advertised ssrc set (pkg/jingle stays
// independent of pkg/source's concrete types).
func ValidateSources(unknownGroupSsrc uint32, hasUnknown bool) *signaling.StanzaError {
	if hasUnknown {
		return signaling.BadRequest("source group references unknown ssrc %d", unknownGroupSsrc)
	}
	return nil
}

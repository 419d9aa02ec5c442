// Package signaling defines the external-facing capabilities the Conference
// Engine consumes: the chat-room adapter (MUC membership/presence) and the
// Jingle adapter (offer/answer IQs). Both are defined as Go interfaces plus
// the value types that cross the boundary; xmpp.go and jingle_xmpp.go
// implement them over XMPP with mellium.im/xmpp.
package signaling

import "mellium.im/xmpp/jid"

// Role is a chat-room member's affiliation, as exposed by the room.
type Role int

const (
	RoleVisitor Role = iota
	RoleMember
	RoleModerator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleModerator:
		return "moderator"
	case RoleVisitor:
		return "visitor"
	default:
		return "member"
	}
}

// SourceInfo is the per-ssrc presence summary a room member advertises
// (spec.md §6: "sourceInfos (ssrc→{muted, videoType})").
type SourceInfo struct {
	Muted     bool
	VideoType string
}

// Member is the chat-room adapter's view of one occupant. EndpointID is the
// MUC resource/nickname; RoomJID/RealJID are full JIDs (RealJID is only
// populated for non-anonymous rooms).
type Member struct {
	EndpointID    string
	RoomJID       jid.JID
	RealJID       jid.JID
	HasRealJID    bool
	Role          Role
	SourceInfos   map[uint32]SourceInfo
	StatsID       string
	Region        string
	Capabilities  []string
	IsJibri       bool
	IsJigasi      bool
	IsTranscriber bool
	IsVisitor     bool
}

// BareJID returns the member's bare (resource-less) JID: the real JID's bare
// form when a real JID is known, otherwise the room JID's bare form. The A/V
// moderation whitelist in pkg/conference is keyed by endpoint id
// (EndpointID), not by this value.
func (m Member) BareJID() jid.JID {
	if m.HasRealJID {
		return m.RealJID.Bare()
	}
	return m.RoomJID.Bare()
}

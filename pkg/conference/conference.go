// Package conference implements the Conference Engine, the top-level state
// machine coordinating members, participants, Colibri sessions, bridge
// selection, source fan-out, muting, restarts, and teardown (spec.md §4.1).
package conference

import (
	"context"
	"sync"
	"time"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/jingle"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/sirupsen/logrus"
)

// BridgeClientFactory opens an RPC client for a newly selected bridge; kept
// as a dependency (not a package-level singleton) so tests can supply fakes
// per spec.md §9 "avoid singletons so tests can instantiate multiple
// conferences with distinct bridge fleets".
type BridgeClientFactory func(bridge.ID) colibri.BridgeClient

// TeardownNotifier is told when a conference has ended, so the owning Focus
// Registry can drop its entry (spec.md §4.6).
type TeardownNotifier interface {
	ConferenceEnded(roomName string)
}

// Conference owns all state for one meeting. Every exported method assumes
// it is invoked from the single serialization point described in spec.md
// §5 (this codebase realizes option (a), a mailbox worker — see engine.go);
// the methods here contain no locking of their own beyond what's needed to
// let read-only accessors (debug snapshot) run concurrently with the
// worker.
type Conference struct {
	RoomName string
	Config   Config

	log *logrus.Entry

	mu sync.RWMutex

	participants    map[participant.ID]*participant.Participant
	members         map[participant.ID]signaling.Member
	jingleAdapters  map[participant.ID]signaling.JingleAdapter
	colibriSessions map[bridge.ID]*colibri.Session
	participantBridge map[participant.ID]bridge.ID
	sourceMap       source.ConferenceSourceMap

	avModeration map[source.MediaType]*moderationState

	selector      *bridge.Selector
	clientFactory BridgeClientFactory
	metrics       Metrics
	notifier      TeardownNotifier

	pendingInvites map[participant.ID]context.CancelFunc
	coalesce       map[participant.ID]*time.Timer

	ended bool
}

type moderationState struct {
	enabled   bool
	whitelist map[string]bool
}

// New constructs an empty conference. clientFactory is used lazily the
// first time a participant is assigned to a bridge that has no session yet.
func New(roomName string, cfg Config, selector *bridge.Selector, clientFactory BridgeClientFactory, metrics Metrics, notifier TeardownNotifier) *Conference {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Conference{
		RoomName:          roomName,
		Config:            cfg,
		log:               logrus.WithField("room", roomName),
		participants:      make(map[participant.ID]*participant.Participant),
		members:           make(map[participant.ID]signaling.Member),
		jingleAdapters:    make(map[participant.ID]signaling.JingleAdapter),
		colibriSessions:   make(map[bridge.ID]*colibri.Session),
		participantBridge: make(map[participant.ID]bridge.ID),
		sourceMap:         source.EmptyConferenceSourceMap,
		avModeration: map[source.MediaType]*moderationState{
			source.Audio: {whitelist: map[string]bool{}},
			source.Video: {whitelist: map[string]bool{}},
		},
		selector:       selector,
		clientFactory:  clientFactory,
		metrics:        metrics,
		notifier:       notifier,
		pendingInvites: make(map[participant.ID]context.CancelFunc),
		coalesce:       make(map[participant.ID]*time.Timer),
	}
}

func memberCapabilities(m signaling.Member) participant.CapabilitySet {
	caps := []participant.Capability{participant.CapAudio, participant.CapVideo, participant.CapRTX, participant.CapTCC, participant.CapREMB}
	for _, c := range m.Capabilities {
		caps = append(caps, participant.Capability(c))
	}
	return participant.NewCapabilitySet(caps...)
}

// MemberJoined constructs a Participant for a newly observed chat-room
// member and, once enough participants have joined, invites everyone not
// yet invited (spec.md §4.1).
func (c *Conference) MemberJoined(m signaling.Member, adapter signaling.JingleAdapter) {
	c.mu.Lock()
	id := participant.ID(m.EndpointID)
	if _, exists := c.participants[id]; exists {
		c.mu.Unlock()
		return
	}

	role := m.Role
	if c.Config.EnableAutoOwner && !m.IsVisitor && len(c.nonFocusMembersLocked()) == 0 {
		role = signaling.RoleModerator
	}

	p := participant.New(id, m.RoomJID.String(), memberCapabilities(m), role, participant.RestartLimiterConfig{
		MinInterval: c.Config.RestartMinInterval,
		MaxBurst:    c.Config.RestartMaxBurst,
	})
	p.IsVisitor = m.IsVisitor
	p.IsJibri = m.IsJibri
	p.IsJigasi = m.IsJigasi
	p.IsTranscriber = m.IsTranscriber
	p.Region = m.Region
	p.StatsID = m.StatsID

	c.participants[id] = p
	c.members[id] = m
	c.jingleAdapters[id] = adapter
	ready := len(c.nonFocusMembersLocked()) >= c.Config.MinParticipants
	toInvite := make([]participant.ID, 0, len(c.participants))
	if ready {
		for pid, pp := range c.participants {
			if pp.Session() == nil {
				toInvite = append(toInvite, pid)
			}
		}
	}
	c.mu.Unlock()

	for _, pid := range toInvite {
		c.invite(pid)
	}
}

func (c *Conference) nonFocusMembersLocked() []participant.ID {
	out := make([]participant.ID, 0, len(c.participants))
	for id, p := range c.participants {
		if !p.IsJibri {
			out = append(out, id)
		}
	}
	return out
}

// MemberLeft ends the participant's session, removes them from their
// Colibri session, and fans out source-remove to everyone else. If zero
// non-focus members remain, teardown is initiated.
func (c *Conference) MemberLeft(endpointID string) {
	c.removeParticipant(participant.ID(endpointID), jingle.ReasonGone)
}

// MemberKicked is MemberLeft with a different end reason for logging.
func (c *Conference) MemberKicked(endpointID, actor, reason string) {
	c.log.WithFields(logrus.Fields{"endpoint": endpointID, "actor": actor, "reason": reason}).Info("participant kicked")
	c.removeParticipant(participant.ID(endpointID), jingle.ReasonKicked)
}

func (c *Conference) removeParticipant(id participant.ID, reason jingle.EndReason) {
	c.mu.Lock()
	p, ok := c.participants[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	if cancel, has := c.pendingInvites[id]; has {
		cancel()
		delete(c.pendingInvites, id)
	}
	p.EndSession(reason)
	delete(c.participants, id)
	delete(c.members, id)
	delete(c.jingleAdapters, id)
	bridgeID, onBridge := c.participantBridge[id]
	delete(c.participantBridge, id)
	c.sourceMap = c.sourceMap.RemoveOwner(source.Owner(id))
	remaining := c.nonFocusMembersLocked()
	c.mu.Unlock()

	if onBridge {
		if sess, ok := c.colibriSessions[bridgeID]; ok {
			empty, err := sess.Expire(context.Background(), id)
			if err != nil {
				c.log.WithError(err).Warn("expire on departure failed")
			}
			if empty {
				c.mu.Lock()
				delete(c.colibriSessions, bridgeID)
				c.mu.Unlock()
			}
		}
	}

	c.fanOutRemoveOwner(id)

	if len(remaining) == 0 {
		c.teardown()
	}
}

// PresenceChanged refreshes a participant's advertised mute/video-type
// summary and role.
func (c *Conference) PresenceChanged(m signaling.Member) {
	c.mu.Lock()
	p, ok := c.participants[participant.ID(m.EndpointID)]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.Role = m.Role
	c.members[participant.ID(m.EndpointID)] = m
	c.mu.Unlock()
}

// teardown ends every participant's session, best-effort-expires every
// Colibri session, and notifies the registry.
func (c *Conference) teardown() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	for _, p := range c.participants {
		p.EndSession(jingle.ReasonGone)
	}
	sessions := make([]*colibri.Session, 0, len(c.colibriSessions))
	for _, s := range c.colibriSessions {
		sessions = append(sessions, s)
	}
	c.colibriSessions = make(map[bridge.ID]*colibri.Session)
	c.mu.Unlock()

	for _, s := range sessions {
		for _, id := range c.bridgeParticipants(s) {
			_, _ = s.Expire(context.Background(), id)
		}
	}

	if c.notifier != nil {
		c.notifier.ConferenceEnded(c.RoomName)
	}
}

func (c *Conference) bridgeParticipants(s *colibri.Session) []participant.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]participant.ID, 0)
	for id, bid := range c.participantBridge {
		if bid == s.BridgeID() {
			out = append(out, id)
		}
	}
	return out
}

// Ended reports whether teardown has completed.
func (c *Conference) Ended() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ended
}

// ParticipantCount returns the current number of tracked participants, for
// debug snapshots.
func (c *Conference) ParticipantCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.participants)
}

package conference

import (
	"context"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// MuteAllParticipants enables moderation for mediaType, clears the
// whitelist, and pushes a forceMute update to every bridge currently hosting
// a participant, so the bridge drops that participant's packets for
// mediaType regardless of whether their client honors the mute (spec.md §4.1
// "muteAllParticipants"). Once a session is already open, rejecting the
// participant's own unmute source-add is handled by mutateSources
// consulting IsWhitelisted.
func (c *Conference) MuteAllParticipants(mediaType source.MediaType, actor participant.ID) {
	c.mu.Lock()
	state := c.avModeration[mediaType]
	state.enabled = true
	state.whitelist = map[string]bool{}

	type hosted struct {
		id   participant.ID
		sess *colibri.Session
	}
	var targets []hosted
	for id, bid := range c.participantBridge {
		if sess, ok := c.colibriSessions[bid]; ok {
			targets = append(targets, hosted{id: id, sess: sess})
		}
	}
	c.mu.Unlock()

	for _, t := range targets {
		if err := t.sess.SetForceMute(context.Background(), t.id, mediaType, true); err != nil {
			c.log.WithError(err).WithField("endpoint", t.id).Warn("forceMute push failed")
		}
	}
}

// HandleMuteRequest sets or clears target's entry in the mediaType whitelist,
// reflecting an owner/moderator's explicit allow for one participant to
// unmute (spec.md §4.1 "handleMuteRequest").
func (c *Conference) HandleMuteRequest(from, target participant.ID, mediaType source.MediaType, mute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.avModeration[mediaType]
	if state == nil {
		return
	}
	if mute {
		delete(state.whitelist, string(target))
	} else {
		state.whitelist[string(target)] = true
	}
}

// IsWhitelisted reports whether id may unmute mediaType, per the current
// moderation policy (spec.md §3 "avModeration").
func (c *Conference) IsWhitelisted(id participant.ID, mediaType source.MediaType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state := c.avModeration[mediaType]
	if state == nil || !state.enabled {
		return true
	}
	return state.whitelist[string(id)]
}

// MoveEndpoint removes id from its current bridge and re-invites it onto a
// newly selected bridge, used when a bridge is draining or failing (spec.md
// §4.1 "moveEndpoint"). invite itself detects the participant already has a
// live session and sends transport-replace (carrying the new bridge's
// transport) instead of session-initiate; no separate send is needed here.
func (c *Conference) MoveEndpoint(id participant.ID) {
	c.mu.Lock()
	_, ok := c.participants[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	c.invite(id)
	c.metrics.ParticipantsMoved(1)
}

// moveEndpointsFromBridge re-invites every participant currently bound to
// bridgeID, used after a bridge is marked non-operational (spec.md §7
// scenario 4 "Bridge failure and move"), and best-effort-expires the stale
// Colibri session.
func (c *Conference) moveEndpointsFromBridge(bridgeID bridge.ID) {
	c.mu.Lock()
	var affected []participant.ID
	for id, bid := range c.participantBridge {
		if bid == bridgeID {
			affected = append(affected, id)
		}
	}
	stale := c.colibriSessions[bridgeID]
	delete(c.colibriSessions, bridgeID)
	c.mu.Unlock()

	for _, id := range affected {
		c.MoveEndpoint(id)
	}

	// Expire asynchronously: the fault may have been reported from inside an
	// RPC that still holds one of these participants' locks on stale.
	if stale != nil {
		go func() {
			for _, id := range affected {
				_, _ = stale.Expire(context.Background(), id)
			}
		}()
	}
}

// MoveEndpoints moves up to n participants off the given bridge, used when
// that bridge is draining (spec.md §4.1 "moveEndpoints").
func (c *Conference) MoveEndpoints(bridgeID bridge.ID, n int) {
	c.mu.RLock()
	var candidates []participant.ID
	for id, bid := range c.participantBridge {
		if len(candidates) >= n {
			break
		}
		if bid == bridgeID {
			candidates = append(candidates, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range candidates {
		c.MoveEndpoint(id)
	}
}

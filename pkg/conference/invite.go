package conference

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// invite runs the invite pipeline for id: select a bridge, allocate channels,
// build the initial offer from conference state filtered by capabilities,
// and send session-initiate, or transport-replace when the participant
// already has a live session (spec.md §4.1 "Invite pipeline"). It is a
// single cancelable task per participant; a later BeginInvite call
// (replace-in-flight) bumps the participant's allocator generation, and this
// pipeline checks that generation before committing each observable effect.
func (c *Conference) invite(id participant.ID) {
	c.mu.Lock()
	p, ok := c.participants[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pendingInvites[id] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingInvites, id)
		c.mu.Unlock()
	}()

	prior := p.Session()
	replacing := prior != nil && !prior.IsEnded()

	session, gen := p.BeginInvite()

	bridgeState := c.bridgeStateSnapshot()
	chosen, err := c.selector.Select(bridgeState, p.Region)
	if err != nil {
		c.log.WithError(err).WithField("endpoint", id).Warn("no bridge available for invite")
		return
	}

	sess := c.colibriSessionFor(chosen.ID())

	initialSources := source.EmptySourceSet
	alloc, err := sess.Allocate(ctx, id, initialSources, colibri.TransportPrefs{})
	if err != nil {
		c.log.WithError(err).WithField("endpoint", id).Warn("allocation failed during invite")
		return
	}

	if !p.IsCurrentGeneration(gen) {
		// Superseded while we were allocating: expire what we just booked
		// rather than leaving an orphaned bridge endpoint.
		_, _ = sess.Expire(context.Background(), id)
		return
	}

	c.mu.Lock()
	c.participantBridge[id] = chosen.ID()
	c.mu.Unlock()

	filtered := p.SourceSignaling().ResetSignaledSources(c.conferenceSourcesExcept(id))

	adapter := c.jingleAdapterFor(id)
	if adapter == nil {
		return
	}

	transportPayload, err := json.Marshal(alloc.Transport)
	if err != nil {
		c.log.WithError(err).WithField("endpoint", id).Warn("failed to encode bridge transport for invite")
		transportPayload = nil
	}

	action := signaling.ActionSessionInitiate
	if replacing {
		action = signaling.ActionTransportReplace
	}

	_ = adapter.Send(session.SID(), action, offerContents(p, transportPayload), signaling.SourcesPayload{Add: filtered}, nil)
}

// offerContents builds the Jingle <content> elements for an offer, carrying
// the bridge-allocated transport (spec.md §4.1 step 4) on each content so the
// recipient actually learns the ICE ufrag/pwd/fingerprint/candidates the
// bridge just handed back.
func offerContents(p *participant.Participant, transport []byte) []signaling.Content {
	contents := []signaling.Content{{Name: "audio", Creator: "initiator", Senders: "both", Payload: transport}}
	if p.Caps.HasVideo() {
		contents = append(contents, signaling.Content{Name: "video", Creator: "initiator", Senders: "both", Payload: transport})
	}
	return contents
}

// bridgeStateSnapshot builds the selector's view of this conference's
// current bridges: who's in use, and, when BridgeVersionPinning is enabled,
// the major version every new allocation must match (spec.md §4.3 rule 1).
// The pin is taken from whichever already-in-use bridge the selector still
// knows about; if none remain known (all expired/forgotten), no pin applies.
func (c *Conference) bridgeStateSnapshot() bridge.ConferenceBridgeState {
	c.mu.RLock()
	inUse := make(map[bridge.ID]int, len(c.colibriSessions))
	bridgeIDs := make([]bridge.ID, 0, len(c.colibriSessions))
	for bid, sess := range c.colibriSessions {
		inUse[bid] = sess.ParticipantCount()
		bridgeIDs = append(bridgeIDs, bid)
	}
	pinningEnabled := c.Config.BridgeVersionPinning
	c.mu.RUnlock()

	var pinned string
	if pinningEnabled {
		for _, bid := range bridgeIDs {
			if b, ok := c.selector.Get(bid); ok {
				pinned = bridge.MajorVersion(b.Version())
				break
			}
		}
	}

	return bridge.ConferenceBridgeState{InUse: inUse, PinnedMajorVersion: pinned}
}

func (c *Conference) colibriSessionFor(id bridge.ID) *colibri.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.colibriSessions[id]; ok {
		return sess
	}
	client := c.clientFactory(id)
	sess := colibri.NewSession(id, client, c)
	c.colibriSessions[id] = sess
	return sess
}

func (c *Conference) jingleAdapterFor(id participant.ID) signaling.JingleAdapter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jingleAdapters[id]
}

// conferenceSourcesExcept returns the full conference source map minus id's
// own sources, the view a newly (re)established session should see.
func (c *Conference) conferenceSourcesExcept(id participant.ID) source.ConferenceSourceMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conferenceSourcesExceptLocked(id)
}

// ConferenceForgotten implements colibri.BridgeFaultHandler: the bridge lost
// its record of this conference. Discard the local session and re-invite
// every participant that was on it (spec.md §4.4/§7, scenario 6).
func (c *Conference) ConferenceForgotten(bridgeID bridge.ID) {
	c.mu.Lock()
	delete(c.colibriSessions, bridgeID)
	var affected []participant.ID
	for id, bid := range c.participantBridge {
		if bid == bridgeID {
			affected = append(affected, id)
		}
	}
	c.mu.Unlock()

	for _, id := range affected {
		c.invite(id)
	}
}

// BridgeWentFaulty implements colibri.BridgeFaultHandler: mark the bridge
// non-operational in the selector's record and move every affected
// participant (spec.md §7, scenario 4).
func (c *Conference) BridgeWentFaulty(bridgeID bridge.ID) {
	if b, ok := c.selector.Get(bridgeID); ok {
		b.MarkFailed(time.Now())
	}
	c.moveEndpointsFromBridge(bridgeID)
}

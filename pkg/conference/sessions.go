package conference

import (
	"context"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/jingle"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// AcceptSession validates sid against the participant's current session,
// rejects sources advertised by a visitor, transitions the session to Active, adds
// the sources to the conference source map, and fans out source-add to
// every other Active participant (spec.md §4.1 "acceptSession"). Groups that
// reference unknown SSRCs were already dropped when advertised was built;
// AcceptSession returns no bad-request error for them.
func (c *Conference) AcceptSession(id participant.ID, sid string, advertised source.EndpointSourceSet) *signaling.StanzaError {
	c.mu.Lock()
	p, ok := c.participants[id]
	if !ok {
		c.mu.Unlock()
		return signaling.ItemNotFound("no such participant %s", id)
	}
	session := p.Session()
	c.mu.Unlock()

	role := jingle.RoleOther
	if p.IsVisitor {
		role = jingle.RoleVisitor
	}
	if stanzaErr := jingle.ValidateIncoming(session, sid, signaling.ActionSessionAccept, role, p.IsJigasi); stanzaErr != nil {
		c.metrics.ValidationFailure(string(stanzaErr.Condition))
		return stanzaErr
	}

	if !advertised.IsEmpty() && p.IsVisitor {
		c.metrics.ValidationFailure("forbidden")
		return signaling.Forbidden("visitors may not advertise sources")
	}

	wasActive := session.IsActive()
	session.Accept()

	bridgeID, hasBridge := c.participantBridgeID(id)
	if hasBridge {
		if sess, ok := c.colibriSessionIfPresent(bridgeID); ok {
			if err := sess.UpdateSources(context.Background(), id, source.EmptyConferenceSourceMap.Add(source.Owner(id), advertised)); err != nil {
				c.log.WithError(err).WithField("endpoint", id).Warn("updateSources failed after session-accept")
			}
		}
	}

	if !advertised.IsEmpty() {
		c.applyDelta(id, advertised, source.EmptySourceSet)
	}

	// The session just became Active: empty whatever queued while it was
	// Pending by sending the full current conference view as one source-add
	// (spec.md §4.1 "Fan-out ordering" — "the queue is emptied at that point").
	if !wasActive {
		filtered := p.SourceSignaling().ResetSignaledSources(c.conferenceSourcesExcept(id))
		if !filtered.IsEmpty() {
			if adapter := c.jingleAdapterFor(id); adapter != nil {
				_ = adapter.Send(session.SID(), signaling.ActionSourceAdd, nil, signaling.SourcesPayload{Add: filtered}, nil)
			}
		}
	}
	return nil
}

// AddSource validates and applies an incremental source-add from id.
func (c *Conference) AddSource(id participant.ID, sid string, added source.EndpointSourceSet) *signaling.StanzaError {
	return c.mutateSources(id, sid, added, source.EmptySourceSet, signaling.ActionSourceAdd)
}

// RemoveSource validates and applies an incremental source-remove from id.
func (c *Conference) RemoveSource(id participant.ID, sid string, removed source.EndpointSourceSet) *signaling.StanzaError {
	return c.mutateSources(id, sid, source.EmptySourceSet, removed, signaling.ActionSourceRemove)
}

func (c *Conference) mutateSources(id participant.ID, sid string, add, remove source.EndpointSourceSet, action signaling.JingleAction) *signaling.StanzaError {
	c.mu.Lock()
	p, ok := c.participants[id]
	if !ok {
		c.mu.Unlock()
		return signaling.ItemNotFound("no such participant %s", id)
	}
	session := p.Session()
	c.mu.Unlock()

	role := jingle.RoleOther
	if p.IsVisitor {
		role = jingle.RoleVisitor
	}
	if stanzaErr := jingle.ValidateIncoming(session, sid, action, role, p.IsJigasi); stanzaErr != nil {
		c.metrics.ValidationFailure(string(stanzaErr.Condition))
		return stanzaErr
	}

	for _, mediaType := range []source.MediaType{source.Audio, source.Video} {
		if !add.Filter(mediaType).IsEmpty() && !c.IsWhitelisted(id, mediaType) {
			c.metrics.ValidationFailure("forbidden")
			return signaling.Forbidden("%s is force-muted", mediaType)
		}
	}

	c.applyDelta(id, add, remove)
	return nil
}

func (c *Conference) participantBridgeID(id participant.ID) (bridge.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bid, ok := c.participantBridge[id]
	return bid, ok
}

func (c *Conference) colibriSessionIfPresent(bid bridge.ID) (*colibri.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.colibriSessions[bid]
	return s, ok
}

// IceFailed treats an ICE failure exactly like a bridge fault for this
// participant alone: if the restart limiter allows, rebuild channels
// (possibly on a different bridge) and re-invite via transport-replace
// (spec.md §4.1 "iceFailed", §7).
func (c *Conference) IceFailed(id participant.ID) *signaling.StanzaError {
	c.mu.Lock()
	p, ok := c.participants[id]
	c.mu.Unlock()
	if !ok {
		return signaling.ItemNotFound("no such participant %s", id)
	}

	c.metrics.ParticipantsRequestedRestart()
	if !p.RestartLimiter().AcceptRestartRequest() {
		c.metrics.ValidationFailure("resource-constraint")
		return signaling.ResourceConstraint("restart rate limit exceeded")
	}

	c.invite(id)
	return nil
}

// TerminateSession ends id's session. bridgeSessionId must match the
// participant's currently bound bridge, otherwise InvalidBridgeSessionId is
// reported as bad-request. If reinvite is true and the restart limiter
// allows, a new invite is scheduled (spec.md §4.1 "terminateSession").
func (c *Conference) TerminateSession(id participant.ID, bridgeSessionID string, reinvite bool) *signaling.StanzaError {
	c.mu.Lock()
	p, ok := c.participants[id]
	bid, hasBridge := c.participantBridge[id]
	c.mu.Unlock()
	if !ok {
		return signaling.ItemNotFound("no such participant %s", id)
	}
	if hasBridge && bridgeSessionID != "" && string(bid) != bridgeSessionID {
		c.metrics.ValidationFailure("bad-request")
		return signaling.BadRequest("stale bridge session id %q", bridgeSessionID)
	}

	p.EndSession(jingle.ReasonSuccess)

	if reinvite {
		c.metrics.ParticipantsRequestedRestart()
		if !p.RestartLimiter().AcceptRestartRequest() {
			c.metrics.ValidationFailure("resource-constraint")
			return signaling.ResourceConstraint("restart rate limit exceeded")
		}
		c.invite(id)
	}
	return nil
}

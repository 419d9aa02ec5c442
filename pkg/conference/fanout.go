package conference

import (
	"time"

	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// applyDelta pushes source's changes into every other Active participant's
// SourceSignaling, then schedules (or immediately sends, if delay is zero)
// the resulting per-recipient deltas. Fan-out to an endpoint whose Jingle
// session is not yet Active is implicitly queued: SourceSignaling just
// accumulates into `updated` until the session becomes Active and
// resetSignaledSources/update is called (spec.md §4.1 "Fan-out ordering").
func (c *Conference) applyDelta(owner participant.ID, add, remove source.EndpointSourceSet) {
	c.mu.Lock()
	if !remove.IsEmpty() {
		c.sourceMap = c.sourceMap.Remove(source.Owner(owner), remove)
	}
	if !add.IsEmpty() {
		c.sourceMap = c.sourceMap.Add(source.Owner(owner), add)
	}
	recipients := make([]participant.ID, 0, len(c.participants))
	for id, p := range c.participants {
		if id == owner || c.usesSsrcRewriting(p) {
			continue
		}
		if p.Session() != nil && p.Session().IsActive() {
			p.SourceSignaling().SetUpdated(c.conferenceSourcesExceptLocked(id))
			recipients = append(recipients, id)
		}
	}
	count := len(c.participants)
	c.mu.Unlock()

	delay := c.Config.SourceSignalingDelay
	if delay == nil {
		delay = DefaultSourceSignalingDelay
	}
	d := delay(count)

	for _, id := range recipients {
		c.scheduleCoalescedSend(id, d)
	}
}

// conferenceSourcesExceptLocked is conferenceSourcesExcept for callers that
// already hold c.mu. When id's participant has negotiated ssrc rewriting and
// the conference enables it, the bridge is authoritative for source
// signaling to that recipient, so the core emits nothing (spec.md §6
// "useSsrcRewriting").
func (c *Conference) conferenceSourcesExceptLocked(id participant.ID) source.ConferenceSourceMap {
	if p, ok := c.participants[id]; ok && c.usesSsrcRewriting(p) {
		return source.EmptyConferenceSourceMap
	}
	m := c.sourceMap.ExceptOwner(source.Owner(id))
	if c.Config.StripSimulcast {
		m = m.StripSimulcast()
	}
	return m
}

// usesSsrcRewriting reports whether p should receive no core-emitted
// source-add/remove signaling because the bridge rewrites SSRCs for it.
func (c *Conference) usesSsrcRewriting(p *participant.Participant) bool {
	return c.Config.UseSsrcRewriting && p.Caps.Has(participant.CapSsrcRewriting)
}

// scheduleCoalescedSend (re)arms a per-participant timer so that several
// deltas arriving within `delay` of each other are coalesced into a single
// source-add/source-remove pair, remove sent before add (spec.md §4.1).
func (c *Conference) scheduleCoalescedSend(id participant.ID, delay time.Duration) {
	c.mu.Lock()
	if existing, ok := c.coalesce[id]; ok {
		existing.Stop()
	}
	if delay <= 0 {
		c.mu.Unlock()
		c.flushCoalesced(id)
		return
	}
	c.coalesce[id] = time.AfterFunc(delay, func() { c.flushCoalesced(id) })
	c.mu.Unlock()
}

func (c *Conference) flushCoalesced(id participant.ID) {
	c.mu.Lock()
	delete(c.coalesce, id)
	p, ok := c.participants[id]
	adapter := c.jingleAdapters[id]
	c.mu.Unlock()
	if !ok || adapter == nil {
		return
	}

	delta := p.SourceSignaling().Update()
	if delta.IsEmpty() {
		return
	}

	session := p.Session()
	if session == nil || !session.IsActive() {
		return
	}

	if !delta.Remove.IsEmpty() {
		_ = adapter.Send(session.SID(), signaling.ActionSourceRemove, nil, signaling.SourcesPayload{Remove: delta.Remove}, nil)
	}
	if !delta.Add.IsEmpty() {
		_ = adapter.Send(session.SID(), signaling.ActionSourceAdd, nil, signaling.SourcesPayload{Add: delta.Add}, nil)
	}
}

// fanOutRemoveOwner tells every remaining participant to drop owner's
// sources, used when owner leaves (spec.md §4.1 "memberLeft ... fan out
// source-remove to all other active participants").
func (c *Conference) fanOutRemoveOwner(owner participant.ID) {
	c.mu.Lock()
	recipients := make([]participant.ID, 0, len(c.participants))
	for id, p := range c.participants {
		if c.usesSsrcRewriting(p) {
			continue
		}
		if p.Session() != nil && p.Session().IsActive() {
			p.SourceSignaling().SetUpdated(c.conferenceSourcesExceptLocked(id))
			recipients = append(recipients, id)
		}
	}
	c.mu.Unlock()

	for _, id := range recipients {
		c.flushCoalesced(id)
	}
}

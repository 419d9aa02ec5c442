package participant

import "github.com/jitsi-contrib/focus/pkg/source"

// Delta is the minimal {Remove, Add} pair SourceSignaling computes on each
// update. Fan-out code always applies Remove before Add (spec.md §4.1
// "Fan-out ordering").
type Delta struct {
	Remove source.ConferenceSourceMap
	Add    source.ConferenceSourceMap
}

// IsEmpty reports whether this delta carries nothing to send.
func (d Delta) IsEmpty() bool {
	return d.Remove.IsEmpty() && d.Add.IsEmpty()
}

// SourceSignaling tracks, for one participant, what the focus last told the
// endpoint (signaled) versus what it currently intends to tell it (updated),
// and produces the minimal delta between the two on demand. Filtering by the
// endpoint's capabilities happens here and only here (spec.md §4.2): callers
// must pass unfiltered conference-wide maps and let update()/resetSignaledSources
// apply the filter.
type SourceSignaling struct {
	signaled source.ConferenceSourceMap
	updated  source.ConferenceSourceMap
	caps     CapabilitySet
}

// NewSourceSignaling creates signaling state for a participant with the
// given capability set, starting from an empty signaled/updated view.
func NewSourceSignaling(caps CapabilitySet) *SourceSignaling {
	return &SourceSignaling{
		signaled: source.EmptyConferenceSourceMap,
		updated:  source.EmptyConferenceSourceMap,
		caps:     caps,
	}
}

func (s *SourceSignaling) mediaFilter() []source.MediaType {
	if s.caps.HasVideo() {
		return []source.MediaType{source.Audio, source.Video}
	}
	return []source.MediaType{source.Audio}
}

// SetUpdated replaces the intended conference-wide view; call Update after
// to compute and consume the resulting delta.
func (s *SourceSignaling) SetUpdated(updated source.ConferenceSourceMap) {
	s.updated = updated
}

// Updated returns the current intended conference-wide view.
func (s *SourceSignaling) Updated() source.ConferenceSourceMap {
	return s.updated
}

// Update computes to_add = filter(updated) − filter(signaled) and
// to_remove = filter(signaled) − filter(updated), advances signaled :=
// updated, and returns the delta. Calling Update twice without an
// intervening SetUpdated returns an empty delta the second time.
func (s *SourceSignaling) Update() Delta {
	filteredUpdated := s.updated.Filter(s.mediaFilter()...)
	filteredSignaled := s.signaled.Filter(s.mediaFilter()...)

	delta := Delta{
		Remove: filteredSignaled.Minus(filteredUpdated),
		Add:    filteredUpdated.Minus(filteredSignaled),
	}

	s.signaled = s.updated
	return delta
}

// ResetSignaledSources forces signaled := updated := sources, used when a
// Jingle session is (re)established, and returns the filtered view to embed
// in the initial offer.
func (s *SourceSignaling) ResetSignaledSources(sources source.ConferenceSourceMap) source.ConferenceSourceMap {
	s.signaled = sources
	s.updated = sources
	return sources.Filter(s.mediaFilter()...)
}

// Signaled returns the last view told to the endpoint, for debug snapshots.
func (s *SourceSignaling) Signaled() source.ConferenceSourceMap {
	return s.signaled
}

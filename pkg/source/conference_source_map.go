package source

import (
	"encoding/json"
	"sort"
)

// Owner identifies who a set of sources belongs to. It is a defined string
// type, so a participant.ID (an endpointId) is converted with Owner(id);
// keeping it here avoids an import cycle between pkg/source and
// pkg/participant.
type Owner string

// ConferenceSourceMap maps an owner (endpoint) to the set of sources they
// advertise. It is the conference-wide view that SourceSignaling filters
// down per recipient.
type ConferenceSourceMap struct {
	byOwner map[Owner]EndpointSourceSet
}

// EmptyConferenceSourceMap is the zero value, usable as a starting accumulator.
var EmptyConferenceSourceMap = ConferenceSourceMap{}

// NewConferenceSourceMap builds a map from the given owner/set pairs.
func NewConferenceSourceMap(entries map[Owner]EndpointSourceSet) ConferenceSourceMap {
	byOwner := make(map[Owner]EndpointSourceSet, len(entries))
	for owner, set := range entries {
		if !set.IsEmpty() {
			byOwner[owner] = set
		}
	}
	return ConferenceSourceMap{byOwner: byOwner}
}

// Get returns the source set for owner, or the empty set if absent.
func (m ConferenceSourceMap) Get(owner Owner) EndpointSourceSet {
	if m.byOwner == nil {
		return EmptySourceSet
	}
	return m.byOwner[owner]
}

// Owners returns the set of owners present in the map, in deterministic order.
func (m ConferenceSourceMap) Owners() []Owner {
	owners := make([]Owner, 0, len(m.byOwner))
	for owner := range m.byOwner {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// Add returns a new map with set's sources merged into owner's entry. Add is
// idempotent: m.Add(o, s).Add(o, s) == m.Add(o, s).
func (m ConferenceSourceMap) Add(owner Owner, set EndpointSourceSet) ConferenceSourceMap {
	merged := m.cloneEntries()
	merged[owner] = merged[owner].Add(set)
	return ConferenceSourceMap{byOwner: merged}
}

// Remove returns a new map with set's sources removed from owner's entry.
// m.Add(owner, s).Remove(owner, s) == m whenever owner was absent from m.
func (m ConferenceSourceMap) Remove(owner Owner, set EndpointSourceSet) ConferenceSourceMap {
	merged := m.cloneEntries()
	if existing, ok := merged[owner]; ok {
		remaining := existing.Remove(set)
		if remaining.IsEmpty() {
			delete(merged, owner)
		} else {
			merged[owner] = remaining
		}
	}
	return ConferenceSourceMap{byOwner: merged}
}

// RemoveOwner drops every source belonging to owner (used when a participant
// leaves the conference).
func (m ConferenceSourceMap) RemoveOwner(owner Owner) ConferenceSourceMap {
	merged := m.cloneEntries()
	delete(merged, owner)
	return ConferenceSourceMap{byOwner: merged}
}

// Filter returns a new map where every owner's set has been filtered to the
// given media types.
func (m ConferenceSourceMap) Filter(mediaTypes ...MediaType) ConferenceSourceMap {
	out := make(map[Owner]EndpointSourceSet, len(m.byOwner))
	for owner, set := range m.byOwner {
		filtered := set.Filter(mediaTypes...)
		if !filtered.IsEmpty() {
			out[owner] = filtered
		}
	}
	return ConferenceSourceMap{byOwner: out}
}

// StripSimulcast returns a new map with SIM/FID groups stripped from every owner's set.
func (m ConferenceSourceMap) StripSimulcast() ConferenceSourceMap {
	out := make(map[Owner]EndpointSourceSet, len(m.byOwner))
	for owner, set := range m.byOwner {
		out[owner] = set.StripSimulcast()
	}
	return ConferenceSourceMap{byOwner: out}
}

// Minus returns a new map where, for each owner present in other, other's
// sources have been removed from m's entry for that owner.
func (m ConferenceSourceMap) Minus(other ConferenceSourceMap) ConferenceSourceMap {
	out := m.cloneEntries()
	for owner, set := range other.byOwner {
		if existing, ok := out[owner]; ok {
			remaining := existing.Remove(set)
			if remaining.IsEmpty() {
				delete(out, owner)
			} else {
				out[owner] = remaining
			}
		}
	}
	return ConferenceSourceMap{byOwner: out}
}

// ExceptOwner returns a copy of m with owner's entry removed; used to build
// "everything except what this recipient already knows about itself".
func (m ConferenceSourceMap) ExceptOwner(owner Owner) ConferenceSourceMap {
	out := m.cloneEntries()
	delete(out, owner)
	return ConferenceSourceMap{byOwner: out}
}

// Copy returns a deep copy of the map.
func (m ConferenceSourceMap) Copy() ConferenceSourceMap {
	return ConferenceSourceMap{byOwner: m.cloneEntries()}
}

// Equal reports whether two maps hold the same owners and sets.
func (m ConferenceSourceMap) Equal(other ConferenceSourceMap) bool {
	if len(m.byOwner) != len(other.byOwner) {
		return false
	}
	for owner, set := range m.byOwner {
		o, ok := other.byOwner[owner]
		if !ok || !set.Equal(o) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the map has no owners.
func (m ConferenceSourceMap) IsEmpty() bool {
	return len(m.byOwner) == 0
}

func (m ConferenceSourceMap) cloneEntries() map[Owner]EndpointSourceSet {
	out := make(map[Owner]EndpointSourceSet, len(m.byOwner))
	for k, v := range m.byOwner {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map keyed by owner, since byOwner is unexported and
// encoding/json silently drops it otherwise.
func (m ConferenceSourceMap) MarshalJSON() ([]byte, error) {
	if m.byOwner == nil {
		return json.Marshal(map[Owner]EndpointSourceSet{})
	}
	return json.Marshal(m.byOwner)
}

// UnmarshalJSON decodes a map encoded by MarshalJSON.
func (m *ConferenceSourceMap) UnmarshalJSON(data []byte) error {
	var byOwner map[Owner]EndpointSourceSet
	if err := json.Unmarshal(data, &byOwner); err != nil {
		return err
	}
	*m = NewConferenceSourceMap(byOwner)
	return nil
}

// ToJSON projects the whole map for debug snapshots.
func (m ConferenceSourceMap) ToJSON() map[string]any {
	out := make(map[string]any, len(m.byOwner))
	for owner, set := range m.byOwner {
		out[string(owner)] = set.ToJSON()
	}
	return out
}

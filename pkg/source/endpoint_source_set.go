package source

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EndpointSourceSet is an immutable (sources, groups) pair describing every
// stream advertised by a single owner. Every operation returns a new value;
// none mutates the receiver.
//
// Invariants maintained by every constructor/mutator in this file:
//   - no two sources share an SSRC
//   - every SsrcGroup references only SSRCs present in sources
//   - at most one camera and one desktop video source among the sources whose
//     SSRC is not listed in any group
type EndpointSourceSet struct {
	sources map[SSRC]Source
	groups  []SsrcGroup
}

// EmptySourceSet is the zero value, useful as a starting accumulator.
var EmptySourceSet = EndpointSourceSet{}

// NewEndpointSourceSet builds a set from sources and groups, dropping any
// group that references an SSRC not present in sources and collapsing
// duplicate sources by SSRC (later entries win, per Source's equality rule).
// If more than one ungrouped camera (or desktop) source is given, only the
// last one encountered is kept, matching "later write wins". Sources whose
// SSRC is listed in one of groups (such as the simulcast layers of one
// camera) are all kept and are not counted against that limit.
func NewEndpointSourceSet(sources []Source, groups []SsrcGroup) EndpointSourceSet {
	grouped := make(map[SSRC]bool)
	for _, g := range groups {
		for _, ssrc := range g.Ssrcs {
			grouped[ssrc] = true
		}
	}

	byID := make(map[SSRC]Source, len(sources))
	var camera, desktop *SSRC

	for _, s := range sources {
		if s.MediaType == Video && !grouped[s.SSRC] {
			switch s.VideoType {
			case VideoTypeCamera:
				if camera != nil {
					delete(byID, *camera)
				}
				ssrc := s.SSRC
				camera = &ssrc
			case VideoTypeDesktop:
				if desktop != nil {
					delete(byID, *desktop)
				}
				ssrc := s.SSRC
				desktop = &ssrc
			}
		}
		byID[s.SSRC] = s
	}

	kept := make([]SsrcGroup, 0, len(groups))
	for _, g := range groups {
		if groupIsValid(g, byID) {
			kept = append(kept, g.copy())
		}
	}

	return EndpointSourceSet{sources: byID, groups: kept}
}

func groupIsValid(g SsrcGroup, known map[SSRC]Source) bool {
	if len(g.Ssrcs) == 0 {
		return false
	}
	for _, ssrc := range g.Ssrcs {
		if _, ok := known[ssrc]; !ok {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the set carries no sources.
func (s EndpointSourceSet) IsEmpty() bool {
	return len(s.sources) == 0
}

// Sources returns the sources in the set, ordered deterministically by SSRC
// so callers (fan-out, JSON projection, tests) see stable output.
func (s EndpointSourceSet) Sources() []Source {
	out := make([]Source, 0, len(s.sources))
	for _, v := range s.sources {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SSRC < out[j].SSRC })
	return out
}

// Groups returns the groups in the set, ordered deterministically.
func (s EndpointSourceSet) Groups() []SsrcGroup {
	out := make([]SsrcGroup, len(s.groups))
	copy(out, s.groups)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Semantics != out[j].Semantics {
			return out[i].Semantics < out[j].Semantics
		}
		return len(out[i].Ssrcs) > 0 && len(out[j].Ssrcs) > 0 && out[i].Ssrcs[0] < out[j].Ssrcs[0]
	})
	return out
}

// Has reports whether ssrc is advertised in this set.
func (s EndpointSourceSet) Has(ssrc SSRC) bool {
	_, ok := s.sources[ssrc]
	return ok
}

// Add returns a new set containing the union of s and other. Sources shared
// by SSRC take other's value (later write wins). Add is idempotent:
// s.Add(other).Add(other) == s.Add(other).
func (s EndpointSourceSet) Add(other EndpointSourceSet) EndpointSourceSet {
	merged := make(map[SSRC]Source, len(s.sources)+len(other.sources))
	for k, v := range s.sources {
		merged[k] = v
	}
	for k, v := range other.sources {
		merged[k] = v
	}

	groups := make([]SsrcGroup, 0, len(s.groups)+len(other.groups))
	seen := make(map[string]bool)
	for _, g := range append(append([]SsrcGroup{}, s.groups...), other.groups...) {
		key := groupKey(g)
		if !seen[key] {
			seen[key] = true
			groups = append(groups, g)
		}
	}

	return NewEndpointSourceSet(valuesOf(merged), groups)
}

func groupKey(g SsrcGroup) string {
	key := string(g.Semantics) + ":"
	for _, ssrc := range g.Ssrcs {
		key += fmt.Sprintf("%d,", ssrc)
	}
	return key
}

func valuesOf(m map[SSRC]Source) []Source {
	out := make([]Source, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// Remove returns a new set with every source present in other removed.
// Removing a source also removes any group referencing its SSRC, per the
// ConferenceSourceMap invariant in spec.md §3. s.Add(other).Remove(other) ==
// s whenever s and other are disjoint; in general it restores s's sources
// that were not overwritten by other.
func (s EndpointSourceSet) Remove(other EndpointSourceSet) EndpointSourceSet {
	remaining := make(map[SSRC]Source, len(s.sources))
	for k, v := range s.sources {
		if _, gone := other.sources[k]; !gone {
			remaining[k] = v
		}
	}

	groups := make([]SsrcGroup, 0, len(s.groups))
	for _, g := range s.groups {
		if groupIsValid(g, remaining) {
			groups = append(groups, g)
		}
	}

	return EndpointSourceSet{sources: remaining, groups: groups}
}

// Minus is an alias for Remove kept for readability at call sites that read
// like set arithmetic (a.Minus(b)).
func (s EndpointSourceSet) Minus(other EndpointSourceSet) EndpointSourceSet {
	return s.Remove(other)
}

// Copy returns a deep copy of the set.
func (s EndpointSourceSet) Copy() EndpointSourceSet {
	return s.Add(EmptySourceSet)
}

// Filter returns the subset of sources whose MediaType is in mediaTypes
// (and any group left fully valid by that subset). Filter is monotone: for
// any a ⊇ b, Filter(a) - Filter(b) == Filter(a - b), which SourceSignaling
// relies on to compute minimal deltas (spec.md §8).
func (s EndpointSourceSet) Filter(mediaTypes ...MediaType) EndpointSourceSet {
	allowed := make(map[MediaType]bool, len(mediaTypes))
	for _, m := range mediaTypes {
		allowed[m] = true
	}

	kept := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		if allowed[src.MediaType] {
			kept = append(kept, src)
		}
	}

	return NewEndpointSourceSet(kept, s.groups)
}

// StripSimulcast drops every SIM and FID group (but keeps the underlying
// sources), used when stripSimulcast directs the focus to present a flat
// list of sources to a given endpoint.
func (s EndpointSourceSet) StripSimulcast() EndpointSourceSet {
	kept := make([]SsrcGroup, 0, len(s.groups))
	for _, g := range s.groups {
		if g.Semantics != SemanticsSIM && g.Semantics != SemanticsFID {
			kept = append(kept, g)
		}
	}
	return EndpointSourceSet{sources: s.sources, groups: kept}
}

// Equal reports whether two sets contain the same sources and groups.
func (s EndpointSourceSet) Equal(other EndpointSourceSet) bool {
	if len(s.sources) != len(other.sources) || len(s.groups) != len(other.groups) {
		return false
	}
	for ssrc, src := range s.sources {
		if o, ok := other.sources[ssrc]; !ok || o != src {
			return false
		}
	}
	otherGroups := other.Groups()
	for i, g := range s.Groups() {
		if !equalGroup(g, otherGroups[i]) {
			return false
		}
	}
	return true
}

// wireEndpointSourceSet is the on-the-wire shape of an EndpointSourceSet: the
// fields MarshalJSON/UnmarshalJSON actually encode, since sources/groups are
// unexported and encoding/json silently drops them otherwise.
type wireEndpointSourceSet struct {
	Sources []Source    `json:"sources"`
	Groups  []SsrcGroup `json:"groups,omitempty"`
}

// MarshalJSON encodes the set for the Jingle source-add/source-remove and
// Colibri allocate/update-sources wire payloads.
func (s EndpointSourceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEndpointSourceSet{Sources: s.Sources(), Groups: s.Groups()})
}

// UnmarshalJSON decodes a set encoded by MarshalJSON, re-establishing the
// same invariants NewEndpointSourceSet enforces on construction.
func (s *EndpointSourceSet) UnmarshalJSON(data []byte) error {
	var w wireEndpointSourceSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = NewEndpointSourceSet(w.Sources, w.Groups)
	return nil
}

// ToJSON projects the set into a plain map structure suitable for debug
// snapshots (Focus Registry's debug endpoint); it is intentionally not
// wire-format JSON for any signaling protocol.
func (s EndpointSourceSet) ToJSON() map[string]any {
	sources := make([]map[string]any, 0, len(s.sources))
	for _, src := range s.Sources() {
		sources = append(sources, map[string]any{
			"ssrc":      uint32(src.SSRC),
			"mediaType": src.MediaType.String(),
			"name":      src.Name,
			"videoType": src.VideoType.String(),
			"muted":     src.Muted,
			"msid":      src.Msid,
		})
	}

	groups := make([]map[string]any, 0, len(s.groups))
	for _, g := range s.Groups() {
		ssrcs := make([]uint32, len(g.Ssrcs))
		for i, ssrc := range g.Ssrcs {
			ssrcs[i] = uint32(ssrc)
		}
		groups = append(groups, map[string]any{
			"semantics": string(g.Semantics),
			"ssrcs":     ssrcs,
		})
	}

	return map[string]any{"sources": sources, "groups": groups}
}

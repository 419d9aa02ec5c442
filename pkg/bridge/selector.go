package bridge

import (
	"errors"
	"sort"
	"sync"
)

// ErrOverloaded is returned by Select whenever no bridge is eligible: every
// known bridge is non-operational, draining, on a mismatched pinned major
// version, or at or above the stress threshold; the engine surfaces this as a client-facing
// rejection with retry advice (spec.md §4.3 "Admission control").
var ErrOverloaded = errors.New("bridge: all candidate bridges are overloaded")

// StressThreshold is the stress level at or above which a bridge is excluded
// from new-participant selection.
const StressThreshold = 0.8

// ConferenceBridgeState is the subset of conference state Select needs:
// which bridges the conference already uses, and each one's current
// participant count there (used for "prefer a bridge already in the
// conference that has capacity").
type ConferenceBridgeState struct {
	// InUse maps a bridge already hosting conference participants to its
	// current participant count on that bridge.
	InUse map[ID]int
	// PinnedMajorVersion is the major version of any bridge already in the
	// conference; empty if the conference has no bridges yet.
	PinnedMajorVersion string
}

// Selector maintains the set of known bridges and the pure ranking policy
// for assigning a new participant to one of them.
type Selector struct {
	mu      sync.RWMutex
	bridges map[ID]*Bridge
}

// NewSelector creates an empty selector.
func NewSelector() *Selector {
	return &Selector{bridges: make(map[ID]*Bridge)}
}

// Upsert registers b (or replaces the entry for its id), used on first
// discovery of a bridge.
func (s *Selector) Upsert(b *Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridges[b.ID()] = b
}

// Get returns the bridge with the given id, if known.
func (s *Selector) Get(id ID) (*Bridge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bridges[id]
	return b, ok
}

// All returns every known bridge, in no particular order.
func (s *Selector) All() []*Bridge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Bridge, 0, len(s.bridges))
	for _, b := range s.bridges {
		out = append(out, b)
	}
	return out
}

// Select ranks operational, non-draining bridges for a new participant in
// participantRegion and returns the best one, applying (spec.md §4.3):
//  1. exclude bridges on a different major version than any bridge already
//     pinned by the conference (version pinning)
//  2. prefer a bridge already in the conference that has capacity
//  3. prefer bridges in the participant's region
//  4. break ties by lowest stress
//
// Select is pure given its inputs besides the bridges' own internally
// synchronized health/load state.
func (s *Selector) Select(state ConferenceBridgeState, participantRegion string) (*Bridge, error) {
	s.mu.RLock()
	candidates := make([]snapshot, 0, len(s.bridges))
	for _, b := range s.bridges {
		candidates = append(candidates, b.snapshot())
	}
	s.mu.RUnlock()

	var eligible []snapshot
	for _, c := range candidates {
		if !c.bridge.IsOperational() || c.bridge.IsDraining() {
			continue
		}
		if state.PinnedMajorVersion != "" && MajorVersion(c.version) != state.PinnedMajorVersion {
			continue
		}
		if c.stress >= StressThreshold {
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		return nil, ErrOverloaded
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]

		_, aInUse := state.InUse[a.bridge.ID()]
		_, bInUse := state.InUse[b.bridge.ID()]
		if aInUse != bInUse {
			return aInUse
		}

		aRegion := a.region == participantRegion
		bRegion := b.region == participantRegion
		if aRegion != bRegion {
			return aRegion
		}

		return a.stress < b.stress
	})

	return eligible[0].bridge, nil
}

// MajorVersion returns the portion of a version string before the first
// '.', used for version pinning across a conference's bridges.
func MajorVersion(v string) string {
	for i, r := range v {
		if r == '.' {
			return v[:i]
		}
	}
	return v
}

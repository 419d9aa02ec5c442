package colibri

import (
	"context"
	"sync"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/sony/gobreaker"
)

// BridgeFaultHandler is notified when a Session's RPCs reveal something the
// engine must react to: the bridge forgetting the conference, or the bridge
// going non-operational and needing its participants moved off.
type BridgeFaultHandler interface {
	ConferenceForgotten(bridgeID bridge.ID)
	BridgeWentFaulty(bridgeID bridge.ID)
}

// Session is the conference's handle to one bridge: a (conference, bridge)
// pair tracking which participants live there, their in-flight RPC state,
// and the octo relay mesh to other bridges (spec.md §3 "ColibriSession",
// §4.4).
type Session struct {
	bridgeID bridge.ID
	client   BridgeClient
	faults   BridgeFaultHandler
	breaker  *gobreaker.CircuitBreaker

	mu                sync.Mutex
	conferenceGumbiID string
	participants      map[participant.ID]*participantLock
	relays            map[bridge.ID]bool
}

// participantLock serializes RPCs for one participant: at most one in-flight
// RPC per participant, but Sessions allow parallel RPCs across participants
// (spec.md §4.4 "Concurrency").
type participantLock struct {
	mu sync.Mutex
}

// NewSession creates a session for bridgeID, wrapping client's RPCs in a
// circuit breaker the same way RoseWrightdev's SFUClient wraps its gRPC
// calls, adapted here to classify failures per spec.md §4.4 instead of
// tripping on raw gRPC codes.
func NewSession(bridgeID bridge.ID, client BridgeClient, faults BridgeFaultHandler) *Session {
	settings := gobreaker.Settings{
		Name:        string(bridgeID),
		MaxRequests: 3,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				faults.BridgeWentFaulty(bridgeID)
			}
		},
	}
	return &Session{
		bridgeID:     bridgeID,
		client:       client,
		faults:       faults,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		participants: make(map[participant.ID]*participantLock),
	}
}

func (s *Session) BridgeID() bridge.ID { return s.bridgeID }

// ParticipantCount returns how many participants this session currently
// tracks, used by the Bridge Selector's "prefer a bridge already in the
// conference that has capacity" rule.
func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func (s *Session) lockFor(id participant.ID) *participantLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.participants[id]
	if !ok {
		pl = &participantLock{}
		s.participants[id] = pl
	}
	return pl
}

// Allocate issues an allocate RPC for id, classifying any failure per
// spec.md §4.4 and invoking the fault handler as needed.
func (s *Session) Allocate(ctx context.Context, id participant.ID, initial source.EndpointSourceSet, prefs TransportPrefs) (*Allocation, error) {
	pl := s.lockFor(id)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	s.mu.Lock()
	gumbiID := s.conferenceGumbiID
	s.mu.Unlock()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		alloc, returnedGumbiID, err := s.client.Allocate(ctx, gumbiID, string(id), initial, prefs)
		if err != nil {
			return nil, err
		}
		return struct {
			alloc   *Allocation
			gumbiID string
		}{alloc, returnedGumbiID}, nil
	})
	if err != nil {
		colErr := classify(err)
		s.handleFailure(colErr)
		return nil, colErr
	}

	out := result.(struct {
		alloc   *Allocation
		gumbiID string
	})
	s.mu.Lock()
	s.conferenceGumbiID = out.gumbiID
	s.mu.Unlock()

	return out.alloc, nil
}

// UpdateSources pushes the current owner→sources view for id.
func (s *Session) UpdateSources(ctx context.Context, id participant.ID, sources source.ConferenceSourceMap) error {
	pl := s.lockFor(id)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	s.mu.Lock()
	gumbiID := s.conferenceGumbiID
	s.mu.Unlock()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.UpdateSources(ctx, gumbiID, string(id), sources)
	})
	if err != nil {
		colErr := classify(err)
		s.handleFailure(colErr)
		return colErr
	}
	return nil
}

// UpdateTransport pushes trickle/final ICE info for id.
func (s *Session) UpdateTransport(ctx context.Context, id participant.ID, transport Transport) error {
	pl := s.lockFor(id)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	s.mu.Lock()
	gumbiID := s.conferenceGumbiID
	s.mu.Unlock()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.UpdateTransport(ctx, gumbiID, string(id), transport)
	})
	if err != nil {
		colErr := classify(err)
		s.handleFailure(colErr)
		return colErr
	}
	return nil
}

// SetForceMute pushes a force-mute decision for id down to the bridge.
func (s *Session) SetForceMute(ctx context.Context, id participant.ID, mediaType source.MediaType, muted bool) error {
	pl := s.lockFor(id)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	gumbiID := s.gumbiIDSnapshot()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.SetForceMute(ctx, gumbiID, string(id), mediaType, muted)
	})
	if err != nil {
		colErr := classify(err)
		s.handleFailure(colErr)
		return colErr
	}
	return nil
}

// Expire removes id from this session; if the session becomes empty it
// expires on the bridge and reports emptiness to the caller so the engine
// can delete it locally.
func (s *Session) Expire(ctx context.Context, id participant.ID) (becameEmpty bool, err error) {
	pl := s.lockFor(id)
	pl.mu.Lock()
	_, execErr := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Expire(ctx, s.gumbiIDSnapshot(), string(id))
	})
	pl.mu.Unlock()

	s.mu.Lock()
	delete(s.participants, id)
	empty := len(s.participants) == 0
	s.mu.Unlock()

	if execErr != nil {
		return empty, classify(execErr)
	}

	if empty {
		_, execErr = s.breaker.Execute(func() (interface{}, error) {
			return nil, s.client.ExpireConference(ctx, s.gumbiIDSnapshot())
		})
		if execErr != nil {
			return true, classify(execErr)
		}
	}
	return empty, nil
}

func (s *Session) gumbiIDSnapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conferenceGumbiID
}

// SetRelays maintains the octo relay mesh for this session against peers.
func (s *Session) SetRelays(ctx context.Context, peers []bridge.ID) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.SetRelays(ctx, s.gumbiIDSnapshot(), peers)
	})
	if err != nil {
		colErr := classify(err)
		s.handleFailure(colErr)
		return colErr
	}

	s.mu.Lock()
	relays := make(map[bridge.ID]bool, len(peers))
	for _, p := range peers {
		relays[p] = true
	}
	s.relays = relays
	s.mu.Unlock()
	return nil
}

func (s *Session) handleFailure(err *Error) {
	switch err.Kind {
	case KindConferenceNotFound:
		s.mu.Lock()
		s.conferenceGumbiID = ""
		s.mu.Unlock()
		s.faults.ConferenceForgotten(s.bridgeID)
	case KindTimeout, KindTransport, KindUnknown:
		s.faults.BridgeWentFaulty(s.bridgeID)
	}
}

// classify maps an arbitrary RPC error to a colibri.Error. Callers of
// BridgeClient implementations are expected to already return *Error from
// their RPC methods when possible; classify maps the circuit breaker's own
// rejections (open state, too many requests) to Transport and wraps anything
// else as Unknown, so the breaker and handleFailure logic always has a Kind
// to act on.
func classify(err error) *Error {
	if colErr, ok := err.(*Error); ok {
		return colErr
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &Error{Kind: KindTransport, Cause: err}
	}
	return &Error{Kind: KindUnknown, Cause: err}
}

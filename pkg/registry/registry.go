// Package registry implements the Focus Registry: the process-wide mapping
// from room name to Conference (spec.md §4.6).
package registry

import (
	"sync"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/conference"
)

// ConferenceFactory builds a new Conference for roomName, wiring in the
// shared Bridge Selector and bridge client factory the registry owns.
type ConferenceFactory func(roomName string) *conference.Conference

// Registry is the single process-wide collection of live conferences. It is
// shared under one mutex, held only across insert/remove/lookup (spec.md §5
// "Shared resources": "The Focus Registry is shared under a single mutex,
// held only across insert/remove/lookup").
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*conference.Conference
	engines map[string]*conference.Engine
	factory ConferenceFactory
}

// New creates an empty registry. factory is called lazily the first time a
// room is requested that the registry doesn't yet know about.
func New(factory ConferenceFactory) *Registry {
	return &Registry{
		rooms:   make(map[string]*conference.Conference),
		engines: make(map[string]*conference.Engine),
		factory: factory,
	}
}

// GetOrCreate returns the conference for roomName, creating it (and its
// mailbox engine) lazily on first request (spec.md §4.6 "Creates a
// conference lazily on first allocation request for a room").
func (r *Registry) GetOrCreate(roomName string) (*conference.Conference, *conference.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.rooms[roomName]; ok {
		return c, r.engines[roomName]
	}

	c := r.factory(roomName)
	e := conference.NewEngine(c)
	r.rooms[roomName] = c
	r.engines[roomName] = e
	return c, e
}

// Get returns the conference for roomName without creating one.
func (r *Registry) Get(roomName string) (*conference.Conference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rooms[roomName]
	return c, ok
}

// ConferenceEnded implements conference.TeardownNotifier: removes roomName
// from the registry once its conference has torn down.
func (r *Registry) ConferenceEnded(roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[roomName]; ok {
		e.Stop()
	}
	delete(r.rooms, roomName)
	delete(r.engines, roomName)
}

// DebugSnapshot exposes every live conference's room name and participant
// count (spec.md §4.6 "Exposes a debug snapshot of all live conferences").
func (r *Registry) DebugSnapshot() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.rooms))
	for name, c := range r.rooms {
		out[name] = c.ParticipantCount()
	}
	return out
}

// Count returns the number of live conferences.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// NewConferenceFactory builds the standard ConferenceFactory used by
// cmd/focus: every conference shares the same bridge selector and bridge
// client factory, metrics sink and teardown notifier, but gets its own
// Config snapshot.
func NewConferenceFactory(cfgFor func(roomName string) conference.Config, selector *bridge.Selector, clientFactory conference.BridgeClientFactory, metrics conference.Metrics, notifier conference.TeardownNotifier) ConferenceFactory {
	return func(roomName string) *conference.Conference {
		return conference.New(roomName, cfgFor(roomName), selector, clientFactory, metrics, notifier)
	}
}

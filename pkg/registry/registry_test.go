package registry_test

import (
	"testing"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/conference"
	"github.com/jitsi-contrib/focus/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestGetOrCreateIsLazyAndIdempotent(t *testing.T) {
	sel := bridge.NewSelector()
	var created []string
	factory := registry.NewConferenceFactory(
		func(roomName string) conference.Config {
			created = append(created, roomName)
			return conference.DefaultConfig()
		},
		sel,
		func(bridge.ID) colibri.BridgeClient { return nil },
		nil,
		nil,
	)
	r := registry.New(factory)

	assert.Equal(t, 0, r.Count())

	c1, e1 := r.GetOrCreate("room-a")
	c2, e2 := r.GetOrCreate("room-a")
	assert.Same(t, c1, c2)
	assert.Same(t, e1, e2)
	assert.Equal(t, []string{"room-a"}, created, "factory must run exactly once per room")
	assert.Equal(t, 1, r.Count())
}

func TestConferenceEndedRemovesEntry(t *testing.T) {
	sel := bridge.NewSelector()
	factory := registry.NewConferenceFactory(
		func(string) conference.Config { return conference.DefaultConfig() },
		sel,
		func(bridge.ID) colibri.BridgeClient { return nil },
		nil,
		nil,
	)
	r := registry.New(factory)
	r.GetOrCreate("room-b")
	assert.Equal(t, 1, r.Count())

	r.ConferenceEnded("room-b")
	assert.Equal(t, 0, r.Count())
	_, ok := r.Get("room-b")
	assert.False(t, ok)
}

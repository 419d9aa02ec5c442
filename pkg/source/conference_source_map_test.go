package source_test

import (
	"encoding/json"
	"testing"

	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConferenceSourceMapAddRemoveIdempotence(t *testing.T) {
	m := source.EmptyConferenceSourceMap
	aSet := source.NewEndpointSourceSet([]source.Source{audio(1, "a0")}, nil)

	m = m.Add("alice", aSet)
	assert.True(t, m.Get("alice").Equal(aSet))

	m2 := m.Remove("alice", aSet)
	assert.True(t, m2.Get("alice").IsEmpty())

	m3 := m.Add("alice", aSet)
	assert.True(t, m3.Equal(m), "re-adding the same set must be a no-op")
}

func TestConferenceSourceMapExceptOwner(t *testing.T) {
	m := source.EmptyConferenceSourceMap.
		Add("alice", source.NewEndpointSourceSet([]source.Source{audio(1, "a0")}, nil)).
		Add("bob", source.NewEndpointSourceSet([]source.Source{audio(2, "b0")}, nil))

	forAlice := m.ExceptOwner("alice")
	assert.True(t, forAlice.Get("alice").IsEmpty())
	assert.False(t, forAlice.Get("bob").IsEmpty())
}

func TestConferenceSourceMapRemoveOwnerDropsEverything(t *testing.T) {
	m := source.EmptyConferenceSourceMap.Add("alice", source.NewEndpointSourceSet([]source.Source{audio(1, "a0"), camera(2, "v0")}, nil))
	m = m.RemoveOwner("alice")
	assert.True(t, m.IsEmpty())
}

func TestConferenceSourceMapJSONRoundTrip(t *testing.T) {
	m := source.EmptyConferenceSourceMap.
		Add("alice", source.NewEndpointSourceSet([]source.Source{audio(1, "a0")}, nil)).
		Add("bob", source.NewEndpointSourceSet([]source.Source{camera(2, "v0")}, nil))

	encoded, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"alice"`, "wire payload must carry real owner/source data, not an empty object")
	assert.Contains(t, string(encoded), `"ssrc":2`)

	var decoded source.ConferenceSourceMap
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, m.Equal(decoded), "round trip through JSON must preserve every owner's sources")
}

func TestEmptyConferenceSourceMapJSONRoundTrip(t *testing.T) {
	encoded, err := json.Marshal(source.EmptyConferenceSourceMap)
	require.NoError(t, err)

	var decoded source.ConferenceSourceMap
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, decoded.IsEmpty())
}

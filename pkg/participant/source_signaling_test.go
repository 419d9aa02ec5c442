package participant_test

import (
	"testing"

	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/stretchr/testify/assert"
)

func aliceSet() source.EndpointSourceSet {
	return source.NewEndpointSourceSet([]source.Source{
		{SSRC: 1, MediaType: source.Audio, Name: "alice-a0"},
		{SSRC: 2, MediaType: source.Video, VideoType: source.VideoTypeCamera, Name: "alice-v0"},
	}, nil)
}

func TestUpdateProducesMinimalDelta(t *testing.T) {
	sig := participant.NewSourceSignaling(participant.NewCapabilitySet(participant.CapAudio, participant.CapVideo))

	m := source.EmptyConferenceSourceMap.Add("alice", aliceSet())
	sig.SetUpdated(m)
	delta := sig.Update()

	assert.True(t, delta.Remove.IsEmpty())
	assert.False(t, delta.Add.IsEmpty())
	assert.True(t, delta.Add.Get("alice").Equal(aliceSet()))

	// Calling Update again without a new SetUpdated must be a no-op delta.
	assert.True(t, sig.Update().IsEmpty())
}

func TestUpdateFiltersVideoForAudioOnlyCapability(t *testing.T) {
	sig := participant.NewSourceSignaling(participant.NewCapabilitySet(participant.CapAudio))

	sig.SetUpdated(source.EmptyConferenceSourceMap.Add("alice", aliceSet()))
	delta := sig.Update()

	got := delta.Add.Get("alice")
	assert.Len(t, got.Sources(), 1)
	assert.Equal(t, source.Audio, got.Sources()[0].MediaType)
}

func TestResetSignaledSourcesForcesBothMaps(t *testing.T) {
	sig := participant.NewSourceSignaling(participant.NewCapabilitySet(participant.CapAudio, participant.CapVideo))
	m := source.EmptyConferenceSourceMap.Add("alice", aliceSet())

	filtered := sig.ResetSignaledSources(m)
	assert.True(t, filtered.Get("alice").Equal(aliceSet()))

	// Since signaled == updated now, a subsequent Update must be empty.
	sig.SetUpdated(m)
	assert.True(t, sig.Update().IsEmpty())
}

func TestRemoveThenAddOrdering(t *testing.T) {
	sig := participant.NewSourceSignaling(participant.NewCapabilitySet(participant.CapAudio, participant.CapVideo))

	first := source.EmptyConferenceSourceMap.Add("alice", source.NewEndpointSourceSet([]source.Source{
		{SSRC: 1, MediaType: source.Audio, Name: "alice-a0"},
	}, nil))
	sig.SetUpdated(first)
	sig.Update()

	second := source.EmptyConferenceSourceMap.Add("bob", source.NewEndpointSourceSet([]source.Source{
		{SSRC: 3, MediaType: source.Audio, Name: "bob-a0"},
	}, nil))
	sig.SetUpdated(second)
	delta := sig.Update()

	assert.False(t, delta.Remove.IsEmpty(), "alice's source must be removed")
	assert.False(t, delta.Add.IsEmpty(), "bob's source must be added")
}

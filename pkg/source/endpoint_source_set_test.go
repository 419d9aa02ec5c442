package source_test

import (
	"encoding/json"
	"testing"

	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func camera(ssrc source.SSRC, name string) source.Source {
	return source.Source{SSRC: ssrc, MediaType: source.Video, VideoType: source.VideoTypeCamera, Name: name}
}

func audio(ssrc source.SSRC, name string) source.Source {
	return source.Source{SSRC: ssrc, MediaType: source.Audio, Name: name}
}

func TestAddRemoveIdempotence(t *testing.T) {
	base := source.NewEndpointSourceSet([]source.Source{audio(1, "a0")}, nil)
	delta := source.NewEndpointSourceSet(
		[]source.Source{camera(2, "v0"), camera(3, "v1")},
		[]source.SsrcGroup{{Semantics: source.SemanticsSIM, Ssrcs: []source.SSRC{2, 3}}},
	)

	assert.True(t, base.Add(delta).Remove(delta).Equal(base), "add then remove must be a no-op")
	assert.True(t, base.Add(delta).Add(delta).Equal(base.Add(delta)), "add must be idempotent")
}

func TestGroupDroppedWhenReferencedSsrcRemoved(t *testing.T) {
	set := source.NewEndpointSourceSet(
		[]source.Source{camera(2, "v0"), camera(3, "v1")},
		[]source.SsrcGroup{{Semantics: source.SemanticsSIM, Ssrcs: []source.SSRC{2, 3}}},
	)
	assert.Len(t, set.Groups(), 1)

	afterRemoval := set.Remove(source.NewEndpointSourceSet([]source.Source{camera(2, "v0")}, nil))
	assert.Empty(t, afterRemoval.Groups(), "group referencing a removed ssrc must be dropped too")
	assert.True(t, afterRemoval.Has(3))
	assert.False(t, afterRemoval.Has(2))
}

func TestAtMostOneCameraAndDesktop(t *testing.T) {
	desktop := source.Source{SSRC: 5, MediaType: source.Video, VideoType: source.VideoTypeDesktop, Name: "d0"}
	set := source.NewEndpointSourceSet([]source.Source{camera(1, "v0"), camera(2, "v1"), desktop}, nil)

	cameraCount, desktopCount := 0, 0
	for _, s := range set.Sources() {
		switch s.VideoType {
		case source.VideoTypeCamera:
			cameraCount++
		case source.VideoTypeDesktop:
			desktopCount++
		}
	}
	assert.Equal(t, 1, cameraCount, "later camera source must replace the earlier one")
	assert.Equal(t, 1, desktopCount)
}

func TestFilterCommutesWithRemove(t *testing.T) {
	a := source.NewEndpointSourceSet([]source.Source{audio(1, "a0"), camera(2, "v0")}, nil)
	b := source.NewEndpointSourceSet([]source.Source{camera(2, "v0")}, nil)

	lhs := a.Filter(source.Video).Remove(b.Filter(source.Video))
	rhs := a.Remove(b).Filter(source.Video)
	assert.True(t, lhs.Equal(rhs), "filter must commute with remove when a ⊇ b")
}

func TestStripSimulcastKeepsSourcesDropsGroups(t *testing.T) {
	set := source.NewEndpointSourceSet(
		[]source.Source{camera(2, "v0"), camera(3, "v1")},
		[]source.SsrcGroup{{Semantics: source.SemanticsSIM, Ssrcs: []source.SSRC{2, 3}}},
	)
	stripped := set.StripSimulcast()
	assert.Empty(t, stripped.Groups())
	assert.Len(t, stripped.Sources(), 2)
}

func TestEqualityBySsrcOnly(t *testing.T) {
	s1 := source.Source{SSRC: 9, Name: "first", Muted: false}
	s2 := source.Source{SSRC: 9, Name: "second", Muted: true}
	set := source.NewEndpointSourceSet([]source.Source{s1}, nil).Add(source.NewEndpointSourceSet([]source.Source{s2}, nil))

	got := set.Sources()
	assert.Len(t, got, 1)
	assert.Equal(t, s2, got[0], "later write with the same ssrc must win")
}

func TestEndpointSourceSetJSONRoundTrip(t *testing.T) {
	set := source.NewEndpointSourceSet(
		[]source.Source{audio(1, "a0"), camera(2, "v0"), camera(3, "v1")},
		[]source.SsrcGroup{{Semantics: source.SemanticsSIM, Ssrcs: []source.SSRC{2, 3}}},
	)

	encoded, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"ssrc":1`, "wire payload must carry the actual ssrc, not an empty object")
	assert.Contains(t, string(encoded), `"SIM"`)

	var decoded source.EndpointSourceSet
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, set.Equal(decoded), "round trip through JSON must preserve sources and groups")
}

func TestEmptyEndpointSourceSetJSONRoundTrip(t *testing.T) {
	encoded, err := json.Marshal(source.EmptySourceSet)
	require.NoError(t, err)

	var decoded source.EndpointSourceSet
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, decoded.IsEmpty())
}

package conference_test

import (
	"context"
	"testing"
	"time"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/conference"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/stretchr/testify/assert"
)

type sentMessage struct {
	sid     string
	action  signaling.JingleAction
	sources signaling.SourcesPayload
}

type fakeJingleAdapter struct {
	sent []sentMessage
}

func (f *fakeJingleAdapter) Send(sid string, action signaling.JingleAction, contents []signaling.Content, sources signaling.SourcesPayload, additionalExtensions []byte) error {
	f.sent = append(f.sent, sentMessage{sid: sid, action: action, sources: sources})
	return nil
}
func (f *fakeJingleAdapter) Requests() <-chan signaling.JingleRequest { return nil }

type fakeBridgeClient struct{}

func (f *fakeBridgeClient) Allocate(ctx context.Context, gumbiID, participantID string, initial source.EndpointSourceSet, prefs colibri.TransportPrefs) (*colibri.Allocation, string, error) {
	return &colibri.Allocation{BridgeEndpointID: participantID + "-be"}, "gumbi", nil
}
func (f *fakeBridgeClient) UpdateSources(ctx context.Context, gumbiID, participantID string, sources source.ConferenceSourceMap) error {
	return nil
}
func (f *fakeBridgeClient) UpdateTransport(ctx context.Context, gumbiID, participantID string, transport colibri.Transport) error {
	return nil
}
func (f *fakeBridgeClient) Expire(ctx context.Context, gumbiID, participantID string) error { return nil }
func (f *fakeBridgeClient) ExpireConference(ctx context.Context, gumbiID string) error      { return nil }
func (f *fakeBridgeClient) SetRelays(ctx context.Context, gumbiID string, relays []bridge.ID) error {
	return nil
}
func (f *fakeBridgeClient) SetForceMute(ctx context.Context, gumbiID, participantID string, mediaType source.MediaType, muted bool) error {
	return nil
}

type countingMetrics struct {
	moved, requestedRestart int
	failures                []string
}

func (m *countingMetrics) ParticipantsMoved(n int)       { m.moved += n }
func (m *countingMetrics) ParticipantsRequestedRestart() { m.requestedRestart++ }
func (m *countingMetrics) ValidationFailure(kind string) { m.failures = append(m.failures, kind) }

func newTestConference(t *testing.T) (*conference.Conference, *bridge.Selector) {
	c, sel, _ := newTestConferenceWithMetrics(t)
	return c, sel
}

func newTestConferenceWithMetrics(t *testing.T) (*conference.Conference, *bridge.Selector, *countingMetrics) {
	t.Helper()
	sel := bridge.NewSelector()
	sel.Upsert(bridge.New("jvb-1", "eu", "2.1", "relay-1", 0))

	cfg := conference.DefaultConfig()
	cfg.SourceSignalingDelay = func(int) time.Duration { return 0 }

	metrics := &countingMetrics{}
	c := conference.New("room@conference.example.com", cfg, sel, func(bridge.ID) colibri.BridgeClient {
		return &fakeBridgeClient{}
	}, metrics, nil)
	return c, sel, metrics
}

func member(endpointID string, role signaling.Role) signaling.Member {
	return signaling.Member{EndpointID: endpointID, Role: role, Capabilities: []string{"VIDEO"}}
}

func TestTwoParticipantJoinSendsInitialOffers(t *testing.T) {
	c, _ := newTestConference(t)

	aAdapter := &fakeJingleAdapter{}
	c.MemberJoined(member("alice", signaling.RoleMember), aAdapter)
	assert.Empty(t, aAdapter.sent, "invite must wait for minParticipants")

	bAdapter := &fakeJingleAdapter{}
	c.MemberJoined(member("bob", signaling.RoleMember), bAdapter)

	assert.Len(t, aAdapter.sent, 1)
	assert.Equal(t, signaling.ActionSessionInitiate, aAdapter.sent[0].action)
	assert.Len(t, bAdapter.sent, 1)
	assert.Equal(t, signaling.ActionSessionInitiate, bAdapter.sent[0].action)
}

func TestAcceptSessionFansOutSourcesToOthers(t *testing.T) {
	c, _ := newTestConference(t)
	aAdapter := &fakeJingleAdapter{}
	bAdapter := &fakeJingleAdapter{}
	c.MemberJoined(member("alice", signaling.RoleMember), aAdapter)
	c.MemberJoined(member("bob", signaling.RoleMember), bAdapter)

	aliceSID := aAdapter.sent[0].sid
	aliceSources := source.NewEndpointSourceSet([]source.Source{
		{SSRC: 1001, MediaType: source.Audio, Name: "alice-a0"},
		{SSRC: 1002, MediaType: source.Video, VideoType: source.VideoTypeCamera, Name: "alice-v0"},
	}, nil)

	stanzaErr := c.AcceptSession(participant.ID("alice"), aliceSID, aliceSources)
	assert.Nil(t, stanzaErr)

	bobSID := bAdapter.sent[0].sid
	stanzaErr = c.AcceptSession(participant.ID("bob"), bobSID, source.EmptySourceSet)
	assert.Nil(t, stanzaErr)

	var sawAliceSources bool
	for _, msg := range bAdapter.sent {
		if !msg.sources.Add.Get("alice").IsEmpty() {
			sawAliceSources = true
		}
	}
	assert.True(t, sawAliceSources, "bob must receive alice's sources once bob's session becomes active")
}

func TestVisitorForbiddenFromAddingSources(t *testing.T) {
	c, _ := newTestConference(t)
	aAdapter := &fakeJingleAdapter{}
	bAdapter := &fakeJingleAdapter{}
	c.MemberJoined(member("alice", signaling.RoleMember), aAdapter)
	visitorMember := member("carol", signaling.RoleVisitor)
	visitorMember.IsVisitor = true
	c.MemberJoined(visitorMember, bAdapter)

	carolSID := bAdapter.sent[0].sid
	sources := source.NewEndpointSourceSet([]source.Source{{SSRC: 5, MediaType: source.Audio, Name: "carol-a0"}}, nil)

	stanzaErr := c.AcceptSession(participant.ID("carol"), carolSID, sources)
	assert.NotNil(t, stanzaErr)
	assert.Equal(t, "forbidden", string(stanzaErr.Condition))
}

func TestRestartRateLimiting(t *testing.T) {
	c, _, metrics := newTestConferenceWithMetrics(t)
	aAdapter := &fakeJingleAdapter{}
	bAdapter := &fakeJingleAdapter{}
	c.MemberJoined(member("dave", signaling.RoleMember), aAdapter)
	c.MemberJoined(member("eve", signaling.RoleMember), bAdapter)

	first := c.IceFailed(participant.ID("dave"))
	assert.Nil(t, first)
	second := c.IceFailed(participant.ID("dave"))
	assert.Nil(t, second)
	third := c.IceFailed(participant.ID("dave"))
	assert.NotNil(t, third)
	assert.Equal(t, "resource-constraint", string(third.Condition))

	assert.Equal(t, 3, metrics.requestedRestart, "every restart request counts, including the rejected third one")
}

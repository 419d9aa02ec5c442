package colibri_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/source"
	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	allocateErr        error
	expiredConferences int
}

func (f *fakeClient) Allocate(ctx context.Context, gumbiID, participantID string, initial source.EndpointSourceSet, prefs colibri.TransportPrefs) (*colibri.Allocation, string, error) {
	if f.allocateErr != nil {
		return nil, "", f.allocateErr
	}
	return &colibri.Allocation{BridgeEndpointID: "be-1"}, "gumbi-1", nil
}
func (f *fakeClient) UpdateSources(ctx context.Context, gumbiID, participantID string, sources source.ConferenceSourceMap) error {
	return nil
}
func (f *fakeClient) UpdateTransport(ctx context.Context, gumbiID, participantID string, transport colibri.Transport) error {
	return nil
}
func (f *fakeClient) Expire(ctx context.Context, gumbiID, participantID string) error { return nil }
func (f *fakeClient) ExpireConference(ctx context.Context, gumbiID string) error {
	f.expiredConferences++
	return nil
}
func (f *fakeClient) SetRelays(ctx context.Context, gumbiID string, relays []bridge.ID) error {
	return nil
}
func (f *fakeClient) SetForceMute(ctx context.Context, gumbiID, participantID string, mediaType source.MediaType, muted bool) error {
	return nil
}

type recordingFaults struct {
	forgotten []bridge.ID
	faulty    []bridge.ID
}

func (r *recordingFaults) ConferenceForgotten(id bridge.ID) { r.forgotten = append(r.forgotten, id) }
func (r *recordingFaults) BridgeWentFaulty(id bridge.ID)    { r.faulty = append(r.faulty, id) }

func TestAllocateSuccessRecordsGumbiID(t *testing.T) {
	client := &fakeClient{}
	faults := &recordingFaults{}
	sess := colibri.NewSession("bridge-1", client, faults)

	alloc, err := sess.Allocate(context.Background(), participant.ID("alice"), source.EmptySourceSet, colibri.TransportPrefs{})
	assert.NoError(t, err)
	assert.Equal(t, "be-1", alloc.BridgeEndpointID)
	assert.Equal(t, 0, len(faults.faulty))
}

func TestAllocateConferenceNotFoundClearsGumbiIDAndNotifies(t *testing.T) {
	client := &fakeClient{allocateErr: &colibri.Error{Kind: colibri.KindConferenceNotFound, Cause: errors.New("gone")}}
	faults := &recordingFaults{}
	sess := colibri.NewSession("bridge-1", client, faults)

	_, err := sess.Allocate(context.Background(), participant.ID("alice"), source.EmptySourceSet, colibri.TransportPrefs{})
	assert.Error(t, err)
	assert.Equal(t, []bridge.ID{"bridge-1"}, faults.forgotten)
}

func TestAllocateBadRequestDoesNotMarkBridgeFaulty(t *testing.T) {
	client := &fakeClient{allocateErr: &colibri.Error{Kind: colibri.KindBadRequest, Cause: errors.New("bad")}}
	faults := &recordingFaults{}
	sess := colibri.NewSession("bridge-1", client, faults)

	_, err := sess.Allocate(context.Background(), participant.ID("alice"), source.EmptySourceSet, colibri.TransportPrefs{})
	assert.Error(t, err)
	assert.Empty(t, faults.faulty)
	assert.Empty(t, faults.forgotten)
}

func TestAllocateTimeoutMarksBridgeFaulty(t *testing.T) {
	client := &fakeClient{allocateErr: &colibri.Error{Kind: colibri.KindTimeout, Cause: errors.New("timeout")}}
	faults := &recordingFaults{}
	sess := colibri.NewSession("bridge-1", client, faults)

	_, err := sess.Allocate(context.Background(), participant.ID("alice"), source.EmptySourceSet, colibri.TransportPrefs{})
	assert.Error(t, err)
	assert.Equal(t, []bridge.ID{"bridge-1"}, faults.faulty)
}

func TestExpireEmptiesSessionAndExpiresConference(t *testing.T) {
	client := &fakeClient{}
	faults := &recordingFaults{}
	sess := colibri.NewSession("bridge-1", client, faults)
	sess.Allocate(context.Background(), participant.ID("alice"), source.EmptySourceSet, colibri.TransportPrefs{})

	empty, err := sess.Expire(context.Background(), participant.ID("alice"))
	assert.NoError(t, err)
	assert.True(t, empty)
	assert.Equal(t, 0, sess.ParticipantCount())
	assert.Equal(t, 1, client.expiredConferences)
}

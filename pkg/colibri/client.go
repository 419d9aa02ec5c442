package colibri

import (
	"context"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// TransportPrefs is the ICE/DTLS preferences the conference supplies when
// allocating or replacing a participant's channels (opaque to this package,
// just like signaling.Content).
type TransportPrefs struct {
	UseBundle  bool
	InitialICE []byte
}

// Transport is the ICE/DTLS descriptor a bridge returns for a participant.
type Transport struct {
	UFrag     string
	Pwd       string
	Fingerprint string
	Candidates []byte
}

// Allocation is what a successful allocate RPC returns.
type Allocation struct {
	BridgeEndpointID string
	Transport        Transport
}

// BridgeClient is the wire-level RPC surface a ColibriSession drives,
// analogous to RoseWrightdev's gRPC SFUClient but speaking the
// allocate/update/expire/set-relays vocabulary of the bridge RPC protocol
// (spec.md §6 "bridge RPC codec" boundary).
type BridgeClient interface {
	Allocate(ctx context.Context, conferenceGumbiID, participantID string, initial source.EndpointSourceSet, prefs TransportPrefs) (*Allocation, string, error)
	UpdateSources(ctx context.Context, conferenceGumbiID, participantID string, sources source.ConferenceSourceMap) error
	UpdateTransport(ctx context.Context, conferenceGumbiID, participantID string, transport Transport) error
	Expire(ctx context.Context, conferenceGumbiID, participantID string) error
	ExpireConference(ctx context.Context, conferenceGumbiID string) error
	SetRelays(ctx context.Context, conferenceGumbiID string, relays []bridge.ID) error
	// SetForceMute pushes the focus's av-moderation decision for participantID
	// down to the bridge actually carrying its media, so a force-muted
	// participant's packets are dropped at the bridge even if the
	// participant's client ignores the mute (spec.md §4.1 "muteAllParticipants").
	SetForceMute(ctx context.Context, conferenceGumbiID, participantID string, mediaType source.MediaType, muted bool) error
}

package colibri

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/source"
)

// HTTPBridgeClient is the default BridgeClient: it speaks a JSON-over-HTTP
// encoding of the allocate/update/expire/set-relays RPCs to one bridge's
// Colibri endpoint. The wire schema here is this codebase's own — the
// corpus has no reference JVB REST client to ground it on — so this stays a
// thin stdlib net/http + encoding/json client rather than pulling in an
// HTTP client library no example repo reaches for.
type HTTPBridgeClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPBridgeClient builds a client for the bridge reachable at baseURL
// (e.g. "https://jvb-1.example.com:8080/colibri").
func NewHTTPBridgeClient(baseURL string, httpClient *http.Client) *HTTPBridgeClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPBridgeClient{baseURL: baseURL, http: httpClient}
}

type allocateRequest struct {
	ConferenceGumbiID string                   `json:"conferenceGumbiId"`
	ParticipantID     string                   `json:"participantId"`
	InitialSources    source.EndpointSourceSet `json:"initialSources"`
	Bundle            bool                     `json:"bundle"`
	InitialICE        []byte                   `json:"initialIce,omitempty"`
}

type allocateResponse struct {
	ConferenceGumbiID string    `json:"conferenceGumbiId"`
	BridgeEndpointID  string    `json:"bridgeEndpointId"`
	Transport         Transport `json:"transport"`
}

func (c *HTTPBridgeClient) Allocate(ctx context.Context, conferenceGumbiID, participantID string, initial source.EndpointSourceSet, prefs TransportPrefs) (*Allocation, string, error) {
	var resp allocateResponse
	if err := c.post(ctx, "/allocate", allocateRequest{
		ConferenceGumbiID: conferenceGumbiID,
		ParticipantID:     participantID,
		InitialSources:    initial,
		Bundle:            prefs.UseBundle,
		InitialICE:        prefs.InitialICE,
	}, &resp); err != nil {
		return nil, "", err
	}
	return &Allocation{BridgeEndpointID: resp.BridgeEndpointID, Transport: resp.Transport}, resp.ConferenceGumbiID, nil
}

type updateSourcesRequest struct {
	ConferenceGumbiID string                     `json:"conferenceGumbiId"`
	ParticipantID     string                     `json:"participantId"`
	Sources           source.ConferenceSourceMap `json:"sources"`
}

func (c *HTTPBridgeClient) UpdateSources(ctx context.Context, conferenceGumbiID, participantID string, sources source.ConferenceSourceMap) error {
	return c.post(ctx, "/update-sources", updateSourcesRequest{conferenceGumbiID, participantID, sources}, nil)
}

type updateTransportRequest struct {
	ConferenceGumbiID string    `json:"conferenceGumbiId"`
	ParticipantID     string    `json:"participantId"`
	Transport         Transport `json:"transport"`
}

func (c *HTTPBridgeClient) UpdateTransport(ctx context.Context, conferenceGumbiID, participantID string, transport Transport) error {
	return c.post(ctx, "/update-transport", updateTransportRequest{conferenceGumbiID, participantID, transport}, nil)
}

type expireRequest struct {
	ConferenceGumbiID string `json:"conferenceGumbiId"`
	ParticipantID     string `json:"participantId,omitempty"`
}

func (c *HTTPBridgeClient) Expire(ctx context.Context, conferenceGumbiID, participantID string) error {
	return c.post(ctx, "/expire", expireRequest{conferenceGumbiID, participantID}, nil)
}

func (c *HTTPBridgeClient) ExpireConference(ctx context.Context, conferenceGumbiID string) error {
	return c.post(ctx, "/expire", expireRequest{ConferenceGumbiID: conferenceGumbiID}, nil)
}

type setRelaysRequest struct {
	ConferenceGumbiID string      `json:"conferenceGumbiId"`
	Relays            []bridge.ID `json:"relays"`
}

func (c *HTTPBridgeClient) SetRelays(ctx context.Context, conferenceGumbiID string, relays []bridge.ID) error {
	return c.post(ctx, "/set-relays", setRelaysRequest{conferenceGumbiID, relays}, nil)
}

type setForceMuteRequest struct {
	ConferenceGumbiID string           `json:"conferenceGumbiId"`
	ParticipantID     string           `json:"participantId"`
	MediaType         source.MediaType `json:"mediaType"`
	Muted             bool             `json:"muted"`
}

func (c *HTTPBridgeClient) SetForceMute(ctx context.Context, conferenceGumbiID, participantID string, mediaType source.MediaType, muted bool) error {
	return c.post(ctx, "/set-force-mute", setForceMuteRequest{conferenceGumbiID, participantID, mediaType, muted}, nil)
}

func (c *HTTPBridgeClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindConferenceNotFound, Cause: fmt.Errorf("%s: not found", path)}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Cause: fmt.Errorf("%s: %s", path, resp.Status)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{Kind: KindBadRequest, Cause: fmt.Errorf("%s: %s", path, resp.Status)}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindUnknown, Cause: fmt.Errorf("%s: %s", path, resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package signaling

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sync"

	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/mux"
	"mellium.im/xmpp/stanza"
)

// jingleNS is the namespace this focus uses for its Jingle-action IQs. It is
// scoped under the focus's own namespace rather than XEP-0166's because the
// wire payload here is a JSON envelope, not full Jingle XML (see wireJingle
// below) — a deliberate simplification recorded in DESIGN.md rather than a
// byte-exact XEP-0166 encoding.
const jingleNS = "http://jitsi.org/protocol/focus#jingle"

// wireJingle is the JSON envelope exchanged inside a <jingle> IQ payload.
type wireJingle struct {
	Action   JingleAction `json:"action"`
	Contents []Content    `json:"contents,omitempty"`
	Add      []byte       `json:"add,omitempty"`
	Remove   []byte       `json:"remove,omitempty"`
	Extra    []byte       `json:"extra,omitempty"`
}

// JingleBus dispatches Jingle IQs for every participant over a shared
// xmpp.Session, handing out a JingleAdapter per endpoint id; cmd/focus uses
// one bus for all rooms. Grounded in the same session/mux pattern as
// RoomSession.
type JingleBus struct {
	session *xmpp.Session

	mu       sync.Mutex
	adapters map[string]*jingleAdapter
}

// NewJingleBus constructs a bus bound to session. Install it in the
// session's multiplexer with HandlerOption.
func NewJingleBus(session *xmpp.Session) *JingleBus {
	return &JingleBus{session: session, adapters: make(map[string]*jingleAdapter)}
}

// AdapterFor returns (creating if necessary) the JingleAdapter used to talk
// to the participant at peer.
func (b *JingleBus) AdapterFor(endpointID string, peer jid.JID) JingleAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.adapters[endpointID]; ok {
		return a
	}
	a := &jingleAdapter{
		session:  b.session,
		peer:     peer,
		requests: make(chan JingleRequest, 32),
	}
	b.adapters[endpointID] = a
	return a
}

// Remove drops the adapter for endpointID once the participant has left.
func (b *JingleBus) Remove(endpointID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.adapters, endpointID)
}

// HandlerOption registers b to receive every set-IQ carrying a <jingle>
// payload under jingleNS.
func (b *JingleBus) HandlerOption() mux.Option {
	return mux.IQ(stanza.SetIQ, xml.Name{Space: jingleNS, Local: "jingle"}, b)
}

// HandleIQ satisfies mux.IQHandler: decodes an inbound <jingle> IQ and routes
// it to the matching adapter's Requests channel.
func (b *JingleBus) HandleIQ(iq stanza.IQ, r xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	var payload struct {
		XMLName xml.Name `xml:"jingle"`
		Body    []byte   `xml:",innerxml"`
	}
	d := xml.NewTokenDecoder(r)
	if err := d.Decode(&payload); err != nil {
		return fmt.Errorf("decode jingle IQ: %w", err)
	}

	var wire wireJingle
	if err := json.Unmarshal(payload.Body, &wire); err != nil {
		return fmt.Errorf("decode jingle envelope: %w", err)
	}

	endpointID := iq.From.Resourcepart()

	b.mu.Lock()
	a, ok := b.adapters[endpointID]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	a.requests <- JingleRequest{
		From:     endpointID,
		SID:      iq.ID,
		Action:   wire.Action,
		Contents: wire.Contents,
		Reply: func(err error) {
			// The Requests consumer replies asynchronously; mellium's mux has
			// already closed the original read side by the time Reply runs, so
			// acks/errors go out as a fresh IQ result/error addressed back to
			// iq.From using the focus's own session.
			a.replyTo(iq, err)
		},
	}
	return nil
}

type jingleAdapter struct {
	session  *xmpp.Session
	peer     jid.JID
	requests chan JingleRequest
}

func (a *jingleAdapter) Send(sid string, action JingleAction, contents []Content, sources SourcesPayload, additionalExtensions []byte) error {
	addBytes, err := json.Marshal(sources.Add)
	if err != nil {
		return fmt.Errorf("marshal add sources: %w", err)
	}
	removeBytes, err := json.Marshal(sources.Remove)
	if err != nil {
		return fmt.Errorf("marshal remove sources: %w", err)
	}

	wire := wireJingle{
		Action:   action,
		Contents: contents,
		Add:      addBytes,
		Remove:   removeBytes,
		Extra:    additionalExtensions,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal jingle envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	iq := stanza.IQ{To: a.peer, Type: stanza.SetIQ, ID: sid}
	resp, err := a.session.SendIQElement(ctx, xmlstream.Wrap(
		xmlstream.Token(xml.CharData(body)),
		xml.StartElement{Name: xml.Name{Space: jingleNS, Local: "jingle"}},
	), iq)
	if err != nil {
		return err
	}
	return resp.Close()
}

func (a *jingleAdapter) Requests() <-chan JingleRequest { return a.requests }

func (a *jingleAdapter) replyTo(iq stanza.IQ, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	if err == nil {
		reply := stanza.IQ{To: iq.From, ID: iq.ID, Type: stanza.ResultIQ}
		_ = a.session.Send(ctx, reply.Wrap(nil))
		return
	}

	stanzaErr, ok := err.(*StanzaError)
	if !ok {
		stanzaErr = BadRequest(err.Error())
	}

	reply := stanza.IQ{To: iq.From, ID: iq.ID, Type: stanza.ErrorIQ}
	se := stanzaErr.ToStanza()
	_ = a.session.Send(ctx, reply.Wrap(se.TokenReader()))
}

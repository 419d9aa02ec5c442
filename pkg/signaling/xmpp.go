package signaling

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/dial"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/muc"
	"mellium.im/xmpp/mux"
	"mellium.im/xmpp/sasl"
	"mellium.im/xmpp/stanza"
)

// iqTimeout bounds every blocking IQ round-trip this adapter makes; the
// ChatRoomAdapter interface has no context parameters, so callers can't pick
// their own deadline.
const iqTimeout = 10 * time.Second

// Dial connects and authenticates the focus's own XMPP session against
// cfg.Domain. The returned session has no stanza handlers registered yet;
// callers wire those via RoomSession.HandlerOption before calling
// session.Serve.
func Dial(ctx context.Context, cfg Config, password string) (*xmpp.Session, error) {
	local := jid.MustParse(cfg.FocusNickname + "@" + cfg.Domain)

	conn, err := dial.Client(ctx, "tcp", local)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConfig := &tls.Config{
		ServerName:         cfg.Domain,
		InsecureSkipVerify: cfg.DisableCertificateVerification, //nolint:gosec
	}

	session, err := xmpp.NewSession(
		ctx, local.Domain(), local, conn,
		0,
		xmpp.NewNegotiator(xmpp.StreamConfig{
			Features: []xmpp.StreamFeature{
				xmpp.StartTLS(tlsConfig),
				xmpp.SASL("", password, sasl.Plain),
				xmpp.BindResource(),
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("negotiate session: %w", err)
	}

	return session, nil
}

// RoomSession is the ChatRoomAdapter for one MUC room, grounded in
// mellium's muc.Client/muc.Channel join/presence pattern.
type RoomSession struct {
	session *xmpp.Session
	client  *muc.Client
	room    jid.JID

	mu      sync.Mutex
	channel *muc.Channel
	members map[string]Member
	events  chan RoomEvent
}

// NewRoomSession builds the adapter for room on session. Join must be called
// before any events arrive.
func NewRoomSession(session *xmpp.Session, room jid.JID) *RoomSession {
	r := &RoomSession{
		session: session,
		room:    room,
		members: make(map[string]Member),
		events:  make(chan RoomEvent, 256),
	}
	r.client = &muc.Client{HandleUserPresence: r.handlePresence}
	return r
}

// HandlerOption returns the mux.Option that must be installed on the
// session's multiplexer for this room's presence traffic to reach
// handlePresence. Every joined room shares one session-wide mux.
func (r *RoomSession) HandlerOption() mux.Option {
	return muc.HandleClient(r.client)
}

// Join enters the room as nickname.
func (r *RoomSession) Join(nickname string) error {
	roomWithNick, err := r.room.WithResource(nickname)
	if err != nil {
		return fmt.Errorf("invalid nickname %q: %w", nickname, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	channel, err := r.client.Join(ctx, roomWithNick, r.session)
	if err != nil {
		return fmt.Errorf("join %s: %w", r.room, err)
	}

	r.mu.Lock()
	r.channel = channel
	r.mu.Unlock()
	return nil
}

// Leave departs the room.
func (r *RoomSession) Leave() error {
	r.mu.Lock()
	channel := r.channel
	r.mu.Unlock()
	if channel == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()
	return channel.Leave(ctx, nil)
}

func (r *RoomSession) handlePresence(p stanza.Presence, item muc.Item) {
	endpointID := p.From.Resourcepart()
	if endpointID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Type == stanza.UnavailablePresence {
		delete(r.members, endpointID)
		r.emitLocked(MemberLeft{EndpointID: endpointID})
		return
	}

	m := Member{
		EndpointID: endpointID,
		RoomJID:    p.From,
		Role:       roleFromAffiliation(item.Affiliation),
	}

	_, known := r.members[endpointID]
	r.members[endpointID] = m
	if known {
		r.emitLocked(MemberPresenceChanged{Member: m})
	} else {
		r.emitLocked(MemberJoined{Member: m})
	}
}

func roleFromAffiliation(aff muc.Affiliation) Role {
	switch aff {
	case muc.AffiliationOwner:
		return RoleOwner
	case muc.AffiliationAdmin:
		return RoleModerator
	default:
		return RoleMember
	}
}

func (r *RoomSession) emitLocked(evt RoomEvent) {
	select {
	case r.events <- evt:
	default:
		logrus.WithField("room", r.room).Warn("room event channel full, dropping event")
	}
}

// Events returns the stream of room events; the owning conference's mailbox
// worker is the sole consumer.
func (r *RoomSession) Events() <-chan RoomEvent { return r.events }

// SetPresenceExtension replaces the focus's own presence payload under
// namespace, triggering a presence broadcast to all occupants (spec.md §6
// room-config echo fields).
func (r *RoomSession) SetPresenceExtension(namespace string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	el := xml.StartElement{Name: xml.Name{Space: namespace, Local: "x"}}
	return r.session.Send(ctx, xmlstream.Wrap(xmlstream.Token(xml.CharData(payload)), el))
}

// GrantOwnership grants owner affiliation to endpointID. Nothing in this
// repository calls it; conference.Config.EnableAutoOwner only changes the
// participant's role inside the conference.
func (r *RoomSession) GrantOwnership(endpointID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	r.mu.Lock()
	channel := r.channel
	to := r.memberJIDLocked(endpointID)
	r.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("not joined to %s", r.room)
	}
	return channel.SetAffiliation(ctx, to, muc.AffiliationOwner, "")
}

// Kick removes endpointID from the room with reason.
func (r *RoomSession) Kick(endpointID, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	r.mu.Lock()
	channel := r.channel
	to := r.memberJIDLocked(endpointID)
	r.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("not joined to %s", r.room)
	}
	return channel.SetRole(ctx, to, muc.RoleNone, reason)
}

// MemberJID returns the full room JID last observed for endpointID, or a
// best-effort guess (room JID + nickname) if no presence has been seen yet.
func (r *RoomSession) MemberJID(endpointID string) jid.JID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberJIDLocked(endpointID)
}

func (r *RoomSession) memberJIDLocked(endpointID string) jid.JID {
	if m, ok := r.members[endpointID]; ok {
		return m.RoomJID
	}
	j, _ := r.room.WithResource(endpointID)
	return j
}

// SendIQ delivers a raw IQ payload to the participant identified by to,
// blocking until a response or iqTimeout elapses.
func (r *RoomSession) SendIQ(to jid.JID, iqType string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), iqTimeout)
	defer cancel()

	iq := stanza.IQ{To: to, Type: stanza.IQType(iqType)}
	resp, err := r.session.SendIQElement(ctx, xmlstream.Wrap(xmlstream.Token(xml.CharData(payload)), xml.StartElement{
		Name: xml.Name{Local: "iq-payload"},
	}), iq)
	if err != nil {
		return nil, err
	}
	defer resp.Close() //nolint:errcheck

	var out struct {
		Inner []byte `xml:",innerxml"`
	}
	if err := xml.NewTokenDecoder(resp).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode IQ response: %w", err)
	}
	return out.Inner, nil
}

package participant

import (
	"sync"

	"github.com/jitsi-contrib/focus/pkg/jingle"
	"github.com/jitsi-contrib/focus/pkg/signaling"
)

// ID is a participant's endpointId, the MUC resource/nickname. The conference
// source map keys on source.Owner, a distinct string type, so callers convert
// with source.Owner(id); pkg/source does not import this package.
type ID string

// PresenceSummary holds a participant's audio/video mute flags. No code in
// this repository sets or reads it; Conference.PresenceChanged updates only
// the role and the stored member.
type PresenceSummary struct {
	AudioMuted bool
	VideoMuted bool
}

// Participant binds one chat-room member to its capability set, Jingle
// session, source signaling, and restart gate. A Participant is owned by
// exactly one Conference; all mutation happens on the owning conference's
// single mailbox worker, so the exported fields below have no internal
// locking; mu guards only the Jingle session and the allocator generation
// used for cancel-replace races.
type Participant struct {
	mu sync.Mutex

	EndpointID ID
	MucJID     string
	Caps       CapabilitySet
	Role       signaling.Role
	StatsID    string
	Region     string

	IsVisitor     bool
	IsJibri       bool
	IsJigasi      bool
	IsTranscriber bool

	Presence PresenceSummary

	session *jingle.Session
	sources *SourceSignaling
	limiter *RestartLimiter

	// allocatorGeneration is bumped every time a new invite pipeline task is
	// started for this participant, so a stale, still-running allocator can
	// recognize it has been superseded and abandon its result instead of
	// applying it (spec.md §4.1 "replacing-in-flight is always allowed and
	// cancels the earlier one").
	allocatorGeneration uint64
}

// New creates a Participant with fresh source signaling and restart limiter
// state. It starts with no Jingle session; the invite pipeline creates one.
func New(id ID, mucJID string, caps CapabilitySet, role signaling.Role, limiterCfg RestartLimiterConfig) *Participant {
	return &Participant{
		EndpointID: id,
		MucJID:     mucJID,
		Caps:       caps,
		Role:       role,
		sources:    NewSourceSignaling(caps),
		limiter:    NewRestartLimiter(limiterCfg),
	}
}

// Session returns the participant's current Jingle session, or nil if none
// has ever been created.
func (p *Participant) Session() *jingle.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// SourceSignaling returns this participant's source-signaling state.
func (p *Participant) SourceSignaling() *SourceSignaling {
	return p.sources
}

// RestartLimiter returns this participant's restart-rate-limiter.
func (p *Participant) RestartLimiter() *RestartLimiter {
	return p.limiter
}

// BeginInvite terminates any existing session with reason replaced, installs
// a fresh Pending session, bumps the allocator generation, and returns the
// new session along with a generation token the invite pipeline must check
// before applying its result (spec.md §4.1 "a prior Jingle session exists,
// it is terminated with replaced before the new offer is sent").
func (p *Participant) BeginInvite() (*jingle.Session, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil && !p.session.IsEnded() {
		p.session.End(jingle.ReasonReplaced)
	}
	p.session = jingle.New(string(p.EndpointID), p.MucJID, p.Caps.Has(CapJSONSources))
	p.allocatorGeneration++
	return p.session, p.allocatorGeneration
}

// IsCurrentGeneration reports whether gen is still the active allocator
// generation, i.e. no later BeginInvite has superseded it.
func (p *Participant) IsCurrentGeneration(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocatorGeneration == gen
}

// EndSession ends the current session with reason, if any exists.
func (p *Participant) EndSession(reason jingle.EndReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.End(reason)
	}
}

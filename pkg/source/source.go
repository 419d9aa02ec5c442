// Package source implements the pure data model for RTP sources advertised
// by conference endpoints: Source, SsrcGroup, EndpointSourceSet and
// ConferenceSourceMap. Every type here is immutable value data with set
// algebra operations; none of it talks to the network or holds a lock.
package source

// MediaType is the kind of media an RTP source carries.
type MediaType int

const (
	Audio MediaType = iota
	Video
)

func (m MediaType) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// VideoType distinguishes the purpose of a video source, since a client may
// simultaneously advertise a camera feed and a desktop-sharing feed.
type VideoType int

const (
	VideoTypeNone VideoType = iota
	VideoTypeCamera
	VideoTypeDesktop
)

func (v VideoType) String() string {
	switch v {
	case VideoTypeCamera:
		return "camera"
	case VideoTypeDesktop:
		return "desktop"
	default:
		return "none"
	}
}

// SSRC is the 32-bit synchronization source identifier of one RTP stream.
type SSRC uint32

// Source is one RTP stream advertised by an endpoint. Equality and hashing
// are defined by SSRC alone: two sources with the same SSRC are the same
// source, and the later write wins, matching the semantics observed on the
// wire (spec.md §9 "Source equality & hashing").
type Source struct {
	SSRC      SSRC      `json:"ssrc"`
	MediaType MediaType `json:"mediaType"`
	// Name is the endpoint-assigned unique id for this source, e.g. "abcd1234-v0".
	Name      string    `json:"name"`
	VideoType VideoType `json:"videoType"`
	Muted     bool      `json:"muted"`
	// Msid is the optional "streamId trackId" pair from the client's SDP.
	Msid string `json:"msid"`
}

// Semantics is the grouping relationship between a set of SSRCs.
type Semantics string

const (
	SemanticsFID   Semantics = "FID"
	SemanticsSIM   Semantics = "SIM"
	SemanticsFECFR Semantics = "FEC-FR"
)

// SsrcGroup ties together a non-empty ordered sequence of SSRCs under one
// semantics, e.g. a SIM group listing the simulcast layers of one camera
// source in quality order. Every SSRC in a group must also appear as a
// Source in the same EndpointSourceSet; that invariant is enforced by
// EndpointSourceSet, not by SsrcGroup itself.
type SsrcGroup struct {
	Semantics Semantics `json:"semantics"`
	Ssrcs     []SSRC    `json:"ssrcs"`
}

func (g SsrcGroup) copy() SsrcGroup {
	ssrcs := make([]SSRC, len(g.Ssrcs))
	copy(ssrcs, g.Ssrcs)
	return SsrcGroup{Semantics: g.Semantics, Ssrcs: ssrcs}
}

// equalGroup compares two groups by semantics and the ordered ssrc sequence.
func equalGroup(a, b SsrcGroup) bool {
	if a.Semantics != b.Semantics || len(a.Ssrcs) != len(b.Ssrcs) {
		return false
	}
	for i := range a.Ssrcs {
		if a.Ssrcs[i] != b.Ssrcs[i] {
			return false
		}
	}
	return true
}

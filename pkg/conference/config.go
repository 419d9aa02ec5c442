package conference

import "time"

// Config holds the per-room options the Conference Engine consults
// (spec.md §6 "Configuration"). It is read-only once a Conference starts.
type Config struct {
	MinParticipants int
	EnableAutoOwner bool

	RestartMinInterval time.Duration
	RestartMaxBurst    int

	// SourceSignalingDelay returns the coalescing delay for a conference with
	// the given participant count; must be nondecreasing in participantCount
	// (spec.md §4.1 "Fan-out ordering").
	SourceSignalingDelay func(participantCount int) time.Duration

	UseSsrcRewriting     bool
	UseJSONEncodedSources bool
	StripSimulcast       bool
	BridgeVersionPinning bool

	MeetingID        string
	IsBreakoutRoom   bool
	BreakoutMainRoom string
}

// DefaultSourceSignalingDelay implements the nondecreasing batching curve:
// flat 20ms below 10 participants, scaling up to 200ms by 100 participants,
// capped there for larger conferences.
func DefaultSourceSignalingDelay(participantCount int) time.Duration {
	switch {
	case participantCount <= 10:
		return 20 * time.Millisecond
	case participantCount >= 100:
		return 200 * time.Millisecond
	default:
		step := (200 - 20) * (participantCount - 10) / 90
		return time.Duration(20+step) * time.Millisecond
	}
}

// DefaultConfig returns the documented defaults (spec.md §6).
func DefaultConfig() Config {
	return Config{
		MinParticipants:      2,
		EnableAutoOwner:      true,
		RestartMinInterval:   3 * time.Second,
		RestartMaxBurst:      2,
		SourceSignalingDelay: DefaultSourceSignalingDelay,
	}
}

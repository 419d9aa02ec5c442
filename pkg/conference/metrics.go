package conference

// Metrics receives the counters spec.md §7/§8 names. A no-op implementation
// is used by default; cmd/focus wires pkg/telemetry's OTel-backed one in.
type Metrics interface {
	ParticipantsMoved(n int)
	ParticipantsRequestedRestart()
	ValidationFailure(kind string)
}

type noopMetrics struct{}

func (noopMetrics) ParticipantsMoved(int)           {}
func (noopMetrics) ParticipantsRequestedRestart()   {}
func (noopMetrics) ValidationFailure(string)        {}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics implements conference.Metrics on top of the OTel meter registered
// for this process (whatever MeterProvider SetupTelemetry's TracerProvider
// sibling configured, or the no-op default if metrics export isn't wired).
type Metrics struct {
	participantsMoved            metric.Int64Counter
	participantsRequestedRestart metric.Int64Counter
	validationFailures           metric.Int64Counter
}

// NewMetrics registers the counters conference.Engine reports against.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(PACKAGE)

	moved, err := meter.Int64Counter("focus.participants_moved",
		metric.WithDescription("participants moved to a different bridge"))
	if err != nil {
		return nil, err
	}
	restarts, err := meter.Int64Counter("focus.participants_requested_restart",
		metric.WithDescription("ICE restarts requested by participants"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("focus.validation_failures",
		metric.WithDescription("rejected Jingle requests, by stanza error condition"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		participantsMoved:            moved,
		participantsRequestedRestart: restarts,
		validationFailures:           failures,
	}, nil
}

func (m *Metrics) ParticipantsMoved(n int) {
	m.participantsMoved.Add(context.Background(), int64(n))
}

func (m *Metrics) ParticipantsRequestedRestart() {
	m.participantsRequestedRestart.Add(context.Background(), 1)
}

func (m *Metrics) ValidationFailure(kind string) {
	m.validationFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

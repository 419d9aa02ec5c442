package participant_test

import (
	"testing"
	"time"

	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/stretchr/testify/assert"
)

func TestRestartLimiterAllowsUpToBurst(t *testing.T) {
	l := participant.NewRestartLimiter(participant.RestartLimiterConfig{MinInterval: time.Hour, MaxBurst: 2})
	assert.True(t, l.AcceptRestartRequest())
	assert.True(t, l.AcceptRestartRequest())
	assert.False(t, l.AcceptRestartRequest(), "third request within the window must be rejected")
}

func TestRestartLimiterDefaultsWhenZeroValue(t *testing.T) {
	l := participant.NewRestartLimiter(participant.RestartLimiterConfig{})
	assert.True(t, l.AcceptRestartRequest())
}

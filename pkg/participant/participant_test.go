package participant_test

import (
	"testing"

	"github.com/jitsi-contrib/focus/pkg/jingle"
	"github.com/jitsi-contrib/focus/pkg/participant"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/stretchr/testify/assert"
)

func newParticipant() *participant.Participant {
	return participant.New("alice", "room@muc/alice", participant.NewCapabilitySet(participant.CapAudio, participant.CapVideo), signaling.RoleMember, participant.DefaultRestartLimiterConfig)
}

func TestBeginInviteEndsPriorSessionAsReplaced(t *testing.T) {
	p := newParticipant()
	first, gen1 := p.BeginInvite()
	assert.Equal(t, jingle.Pending, first.State())

	second, gen2 := p.BeginInvite()
	assert.True(t, first.IsEnded())
	assert.Equal(t, jingle.ReasonReplaced, first.EndReason())
	assert.NotEqual(t, first.SID(), second.SID())
	assert.NotEqual(t, gen1, gen2)
}

func TestAllocatorGenerationDetectsSupersededInvite(t *testing.T) {
	p := newParticipant()
	_, gen1 := p.BeginInvite()
	assert.True(t, p.IsCurrentGeneration(gen1))

	p.BeginInvite()
	assert.False(t, p.IsCurrentGeneration(gen1), "a stale allocator must detect it has been superseded")
}

package jingle_test

import (
	"testing"

	"github.com/jitsi-contrib/focus/pkg/jingle"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/stretchr/testify/assert"
)

func TestNewSessionIsPendingWithUniqueSID(t *testing.T) {
	a := jingle.New("alice", "alice@room", false)
	b := jingle.New("alice", "alice@room", false)
	assert.Equal(t, jingle.Pending, a.State())
	assert.NotEqual(t, a.SID(), b.SID(), "sids must be monotonic/unique per participant lifetime")
}

func TestAcceptOnlyFromPending(t *testing.T) {
	s := jingle.New("alice", "alice@room", false)
	assert.True(t, s.Accept())
	assert.Equal(t, jingle.Active, s.State())
	assert.False(t, s.Accept(), "accepting twice must be a no-op")
}

func TestEndIsOneWay(t *testing.T) {
	s := jingle.New("alice", "alice@room", false)
	s.Accept()
	s.End(jingle.ReasonSuccess)
	assert.True(t, s.IsEnded())
	s.End(jingle.ReasonReplaced)
	assert.Equal(t, jingle.ReasonSuccess, s.EndReason(), "first end reason sticks")
}

func TestOldSidRejectedAfterReplace(t *testing.T) {
	first := jingle.New("alice", "alice@room", false)
	first.End(jingle.ReasonReplaced)
	second := jingle.New("alice", "alice@room", false)

	err := jingle.ValidateIncoming(second, first.SID(), signaling.ActionSessionAccept, jingle.RoleOther, false)
	assert.NotNil(t, err)
	assert.Equal(t, "item-not-found", string(err.Condition))
}

func TestVisitorForbiddenFromAddingSources(t *testing.T) {
	s := jingle.New("alice", "alice@room", false)
	err := jingle.ValidateIncoming(s, s.SID(), signaling.ActionSourceAdd, jingle.RoleVisitor, false)
	assert.NotNil(t, err)
	assert.Equal(t, "forbidden", string(err.Condition))
}

func TestJigasiTransportInfoToleratesStaleSid(t *testing.T) {
	s := jingle.New("alice", "alice@room", false)
	err := jingle.ValidateIncoming(s, "stale-sid", "transport-info", jingle.RoleOther, true)
	assert.Nil(t, err)
}

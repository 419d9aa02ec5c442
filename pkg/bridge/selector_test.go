package bridge_test

import (
	"testing"
	"time"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/stretchr/testify/assert"
)

func TestSelectPrefersBridgeAlreadyInConference(t *testing.T) {
	sel := bridge.NewSelector()
	a := bridge.New("a", "eu", "2.1", "relay-a", time.Minute)
	b := bridge.New("b", "eu", "2.1", "relay-b", time.Minute)
	sel.Upsert(a)
	sel.Upsert(b)

	chosen, err := sel.Select(bridge.ConferenceBridgeState{InUse: map[bridge.ID]int{"b": 3}}, "eu")
	assert.NoError(t, err)
	assert.Equal(t, bridge.ID("b"), chosen.ID())
}

func TestSelectExcludesDifferentMajorVersion(t *testing.T) {
	sel := bridge.NewSelector()
	sel.Upsert(bridge.New("a", "eu", "2.1", "relay-a", time.Minute))
	sel.Upsert(bridge.New("b", "eu", "3.0", "relay-b", time.Minute))

	chosen, err := sel.Select(bridge.ConferenceBridgeState{PinnedMajorVersion: "2"}, "eu")
	assert.NoError(t, err)
	assert.Equal(t, bridge.ID("a"), chosen.ID())
}

func TestSelectPrefersRegionThenLowestStress(t *testing.T) {
	sel := bridge.NewSelector()
	euHigh := bridge.New("eu-high", "eu", "2.1", "r1", time.Minute)
	euHigh.SetLoad(0.5, 0, false, false)
	usLow := bridge.New("us-low", "us", "2.1", "r2", time.Minute)
	usLow.SetLoad(0.1, 0, false, false)
	sel.Upsert(euHigh)
	sel.Upsert(usLow)

	chosen, err := sel.Select(bridge.ConferenceBridgeState{}, "eu")
	assert.NoError(t, err)
	assert.Equal(t, bridge.ID("eu-high"), chosen.ID(), "region match must win over lower stress elsewhere")
}

func TestSelectReturnsOverloadedWhenAllAboveThreshold(t *testing.T) {
	sel := bridge.NewSelector()
	overloaded := bridge.New("a", "eu", "2.1", "r1", time.Minute)
	overloaded.SetLoad(0.95, 0, false, false)
	sel.Upsert(overloaded)

	_, err := sel.Select(bridge.ConferenceBridgeState{}, "eu")
	assert.ErrorIs(t, err, bridge.ErrOverloaded)
}

func TestSelectExcludesDrainingAndNonOperational(t *testing.T) {
	sel := bridge.NewSelector()
	draining := bridge.New("draining", "eu", "2.1", "r1", time.Minute)
	draining.SetLoad(0, 0, true, false)
	failed := bridge.New("failed", "eu", "2.1", "r2", time.Hour)
	failed.MarkFailed(time.Now())
	sel.Upsert(draining)
	sel.Upsert(failed)

	_, err := sel.Select(bridge.ConferenceBridgeState{}, "eu")
	assert.ErrorIs(t, err, bridge.ErrOverloaded)
}

func TestBridgeAutoRecoversAfterQuarantine(t *testing.T) {
	b := bridge.New("a", "eu", "2.1", "r1", 10*time.Millisecond)
	b.MarkFailed(time.Now().Add(-20 * time.Millisecond))
	assert.True(t, b.IsOperational())
}

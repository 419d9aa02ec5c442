// Package bridge models SFU bridges and the selection policy for assigning
// participants to them (spec.md §4.3). Nothing here talks to a bridge over
// the wire; that belongs to pkg/colibri, whose BridgeClient is driven by the
// state recorded here.
package bridge

import (
	"sync"
	"time"
)

// ID is a bridge's opaque address/identity (e.g. its JID or jvb-id).
type ID string

// Bridge tracks one known SFU bridge's health and load signals. Bridges are
// created on first discovery and never deleted: health/load transitions
// re-enable selection rather than removing the entry (spec.md §3).
type Bridge struct {
	mu sync.Mutex

	id      ID
	region  string
	version string
	relayID string

	operational   bool
	lastFailure   time.Time
	quarantineFor time.Duration

	stress    float64
	packetRate uint64
	draining  bool
	shuttingDown bool
}

// New creates a bridge record, operational by default.
func New(id ID, region, version, relayID string, quarantine time.Duration) *Bridge {
	return &Bridge{
		id:            id,
		region:        region,
		version:       version,
		relayID:       relayID,
		operational:   true,
		quarantineFor: quarantine,
	}
}

func (b *Bridge) ID() ID          { return b.id }
func (b *Bridge) Region() string  { return b.region }
func (b *Bridge) Version() string { return b.version }
func (b *Bridge) RelayID() string { return b.relayID }

// IsOperational reports whether the bridge can currently accept new
// participants, auto-recovering a prior failure once the quarantine window
// has elapsed.
func (b *Bridge) IsOperational() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.operational {
		return true
	}
	if !b.lastFailure.IsZero() && time.Since(b.lastFailure) >= b.quarantineFor {
		b.operational = true
	}
	return b.operational
}

// MarkFailed marks the bridge non-operational starting now; it will
// auto-recover after the quarantine window unless re-failed.
func (b *Bridge) MarkFailed(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operational = false
	b.lastFailure = now
}

// MarkHealthy clears a failure explicitly (an external health signal).
func (b *Bridge) MarkHealthy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operational = true
	b.lastFailure = time.Time{}
}

// SetLoad updates the bridge's advertised load signals, normally from a
// periodic stats report.
func (b *Bridge) SetLoad(stress float64, packetRate uint64, draining, shuttingDown bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stress = stress
	b.packetRate = packetRate
	b.draining = draining
	b.shuttingDown = shuttingDown
}

func (b *Bridge) Stress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stress
}

// IsDraining reports whether the bridge should not receive new participants
// but keeps serving existing ones.
func (b *Bridge) IsDraining() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draining || b.shuttingDown
}

// snapshot is an internal immutable view used by Selector.Select so ranking
// never races with concurrent SetLoad/MarkFailed calls.
type snapshot struct {
	bridge  *Bridge
	region  string
	version string
	stress  float64
}

func (b *Bridge) snapshot() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot{bridge: b, region: b.region, version: b.version, stress: b.stress}
}

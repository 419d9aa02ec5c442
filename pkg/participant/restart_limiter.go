package participant

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RestartLimiterConfig configures the token-bucket gating restart requests
// for one participant (spec.md §4.2 "restart-request rate limiter").
type RestartLimiterConfig struct {
	// MinInterval is the minimum spacing between refills (the bucket's rate).
	MinInterval time.Duration
	// MaxBurst is the bucket's capacity: how many restarts can be accepted
	// back-to-back before the limiter starts rejecting.
	MaxBurst int
}

// DefaultRestartLimiterConfig matches the reference focus implementation's
// defaults: one restart allowed every 3 seconds, burst of 3.
var DefaultRestartLimiterConfig = RestartLimiterConfig{
	MinInterval: 3 * time.Second,
	MaxBurst:    3,
}

// RestartLimiter is the single source of truth for "should this
// session-terminate's restart=true be honored". It wraps
// golang.org/x/time/rate's token bucket.
type RestartLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewRestartLimiter builds a limiter from cfg.
func NewRestartLimiter(cfg RestartLimiterConfig) *RestartLimiter {
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = DefaultRestartLimiterConfig.MinInterval
	}
	burst := cfg.MaxBurst
	if burst <= 0 {
		burst = DefaultRestartLimiterConfig.MaxBurst
	}
	return &RestartLimiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// AcceptRestartRequest consumes one token if available. A false result means
// the caller must keep the session ended and reply with resource-constraint
// so the client backs off.
func (l *RestartLimiter) AcceptRestartRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Allow()
}

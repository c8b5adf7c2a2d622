package schedule

import (
	"sync"
	"time"
)

// BreakerConfig controls when the remote cache layer is bypassed.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// BreakerState is a point-in-time view of the breaker.
type BreakerState struct {
	Open     bool      `json:"open"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"openedAt,omitempty"`
}

// Breaker counts consecutive remote failures. Once the threshold is reached it
// stays open for the cooldown, after which the count is reset and the next
// operation is simply attempted again.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker builds a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether the remote layer may be used right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.cfg.Threshold {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.failures = 0
		b.openedAt = time.Time{}
		return true
	}
	return false
}

// Success resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.openedAt = time.Time{}
	b.mu.Unlock()
}

// Failure records one failed remote operation.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures == b.cfg.Threshold {
		b.openedAt = b.now()
	}
}

// State returns a snapshot.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		Open:     b.failures >= b.cfg.Threshold,
		Failures: b.failures,
		OpenedAt: b.openedAt,
	}
}

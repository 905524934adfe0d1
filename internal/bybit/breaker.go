package bybit

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig tunes trip sensitivity and recovery timing.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	CooldownDuration time.Duration
}

// Breaker trips after a run of consecutive hard failures (a fetch
// that exhausted its own per-request retries), short-circuits new
// calls for a cooldown window, then allows a single half-open probe
// before resetting. Distinct from fetchWithRetry's per-request
// backoff: this guards the endpoint's health across many requests.
type Breaker struct {
	mu                  sync.Mutex
	cfg                 BreakerConfig
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewBreaker constructs a Breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CooldownDuration <= 0 {
		cfg.CooldownDuration = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a new request may proceed, transitioning
// open -> half-open once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	if !b.cfg.Enabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.CooldownDuration {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure streak and closes the breaker.
func (b *Breaker) RecordSuccess() {
	if !b.cfg.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.state = StateClosed
}

// RecordFailure counts one hard failure (exhausted retries), tripping
// the breaker once the threshold is reached, or re-opening it
// immediately if the half-open probe itself failed.
func (b *Breaker) RecordFailure() {
	if !b.cfg.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// State reports the breaker's current mode. MetricValue maps this to
// the breaker_state gauge's own numbering.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// MetricValue reports State() using the breaker_state gauge's own
// numbering (0=closed, 1=half-open, 2=open), which differs from
// BreakerState's iota order.
func (b *Breaker) MetricValue() int {
	switch b.State() {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker is rejecting calls.
var ErrBreakerOpen = errors.New("model circuit breaker is open")

// breakerState tracks where the breaker is in its closed/open/half-open
// cycle.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the model-call circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening (default: 5)
	SuccessThreshold int           // half-open successes before closing (default: 2)
	Cooldown         time.Duration // open duration before probing again (default: 30s)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker stops hammering a failing model provider. After enough
// consecutive failures it rejects calls outright; once the cooldown
// passes it lets probe calls through and closes again after enough of
// them succeed.
type Breaker struct {
	mu sync.Mutex

	state     breakerState
	failures  int
	successes int
	openedAt  time.Time

	cfg BreakerConfig
}

// NewBreaker creates a breaker. Zero-value config fields use defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{state: breakerClosed, cfg: cfg}
}

// Allow reports whether a call may proceed. It owns the open to
// half-open transition, so it takes the exclusive lock.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if time.Since(b.openedAt) > b.cfg.Cooldown {
			b.state = breakerHalfOpen
			b.successes = 0
			return nil
		}
		return ErrBreakerOpen
	default:
		// Closed and half-open both let the call through
		return nil
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = breakerClosed
			b.failures = 0
			b.successes = 0
		}
	case breakerClosed:
		b.failures = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	switch b.state {
	case breakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = breakerOpen
			b.openedAt = time.Now()
		}
	case breakerHalfOpen:
		// A probe failure reopens immediately
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.successes = 0
	}
}

// State returns the current state name for logging.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

package llm

import (
	"errors"
	"testing"
	"time"
)

func TestNewBreaker_Defaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{})
	def := DefaultBreakerConfig()

	if b.cfg.FailureThreshold != def.FailureThreshold {
		t.Errorf("FailureThreshold = %d, want default %d", b.cfg.FailureThreshold, def.FailureThreshold)
	}
	if b.cfg.SuccessThreshold != def.SuccessThreshold {
		t.Errorf("SuccessThreshold = %d, want default %d", b.cfg.SuccessThreshold, def.SuccessThreshold)
	}
	if b.cfg.Cooldown != def.Cooldown {
		t.Errorf("Cooldown = %v, want default %v", b.cfg.Cooldown, def.Cooldown)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want %q", got, "closed")
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	b.Failure()
	b.Failure()
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() below threshold unexpected error: %v", err)
	}

	b.Failure()
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Allow() at threshold error = %v, want ErrBreakerOpen", err)
	}
	if got := b.State(); got != "open" {
		t.Errorf("State() = %q, want %q", got, "open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	// Never three in a row, so still closed.
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() unexpected error: %v", err)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want %q", got, "closed")
	}
}

func TestBreaker_ProbesAfterCooldown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	b.Failure()
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Allow() while open error = %v, want ErrBreakerOpen", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown unexpected error: %v", err)
	}
	if got := b.State(); got != "half-open" {
		t.Errorf("State() = %q, want %q", got, "half-open")
	}

	// One success is not enough with SuccessThreshold 2.
	b.Success()
	if got := b.State(); got != "half-open" {
		t.Errorf("State() after one probe success = %q, want %q", got, "half-open")
	}

	b.Success()
	if got := b.State(); got != "closed" {
		t.Errorf("State() after two probe successes = %q, want %q", got, "closed")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: 10 * time.Millisecond})

	b.Failure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown unexpected error: %v", err)
	}

	b.Failure()
	if got := b.State(); got != "open" {
		t.Errorf("State() after probe failure = %q, want %q", got, "open")
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Allow() error = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state breakerState
		want  string
	}{
		{breakerClosed, "closed"},
		{breakerOpen, "open"},
		{breakerHalfOpen, "half-open"},
		{breakerState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("breakerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

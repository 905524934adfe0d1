package bybit

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Enabled: true, FailureThreshold: 3, CooldownDuration: time.Hour})

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected breaker to allow request %d before tripping", i)
		}
		b.RecordFailure()
	}

	if b.State() != StateOpen {
		t.Fatalf("expected breaker open after reaching threshold, got %v", b.State())
	}
	if b.Allow() {
		t.Error("expected breaker to short-circuit while open")
	}
}

func TestBreakerHalfOpenProbeAndReset(t *testing.T) {
	b := NewBreaker(BreakerConfig{Enabled: true, FailureThreshold: 1, CooldownDuration: 10 * time.Millisecond})

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after one failure at threshold 1, got %v", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected half-open probe to be allowed after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown elapses, got %v", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after a successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{Enabled: true, FailureThreshold: 1, CooldownDuration: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.Allow() // transitions to half-open

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected a failed probe to reopen the breaker, got %v", b.State())
	}
}

func TestBreakerDisabledAlwaysAllows(t *testing.T) {
	b := NewBreaker(BreakerConfig{Enabled: false, FailureThreshold: 1})
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Error("expected a disabled breaker to always allow requests")
	}
}

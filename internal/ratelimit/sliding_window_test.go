package ratelimit

import (
	"testing"
	"time"
)

func TestAllowUpToLimit(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res := l.Allow("agent-1", 3, time.Minute, now)
		if !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, res.Remaining, 3-(i+1))
		}
	}

	res := l.Allow("agent-1", 3, time.Minute, now)
	if res.Allowed {
		t.Fatal("request over the limit allowed")
	}
	if !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("reset at %v, want %v", res.ResetAt, now.Add(time.Minute))
	}
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	if !l.Allow("agent-1", 1, time.Minute, now).Allowed {
		t.Fatal("first request denied")
	}
	if l.Allow("agent-1", 1, time.Minute, now.Add(30*time.Second)).Allowed {
		t.Fatal("request inside window allowed")
	}
	if !l.Allow("agent-1", 1, time.Minute, now.Add(61*time.Second)).Allowed {
		t.Fatal("request after window denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	if !l.Allow("agent-1", 1, time.Minute, now).Allowed {
		t.Fatal("agent-1 denied")
	}
	if !l.Allow("agent-2", 1, time.Minute, now).Allowed {
		t.Fatal("agent-2 throttled by agent-1's history")
	}
}

func TestZeroLimitDisablesCheck(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if !l.Allow("agent-1", 0, time.Minute, now).Allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

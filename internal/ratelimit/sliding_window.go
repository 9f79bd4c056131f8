// Package ratelimit provides an in-memory sliding-window limiter for API
// abuse control. It is per-process and advisory; the daily posting cap is
// enforced separately against storage.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{history: make(map[string][]time.Time)}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allow records one event under key if fewer than limit events fall inside
// the trailing window, and reports the outcome. limit <= 0 disables the
// check.
func (l *Limiter) Allow(key string, limit int, window time.Duration, now time.Time) Result {
	if limit <= 0 {
		return Result{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	kept := l.history[key][:0]
	for _, ts := range l.history[key] {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			kept = append(kept, ts)
		}
	}

	res := Result{Limit: limit}
	if len(kept) >= limit {
		l.history[key] = kept
		res.ResetAt = kept[0].Add(window)
		return res
	}

	kept = append(kept, now)
	l.history[key] = kept
	res.Allowed = true
	res.Remaining = limit - len(kept)
	res.ResetAt = kept[0].Add(window)
	return res
}

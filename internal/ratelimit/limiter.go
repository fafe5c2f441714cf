// Package ratelimit implements sliding-window admission limiting over a
// pluggable window store, so a single-process map and a shared Redis
// deployment are interchangeable backends of the same contract.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest recorded request leaves the window, i.e. the
	// earliest moment capacity is expected to free up. Advisory only.
	ResetAt time.Time
}

// WindowStore records request timestamps per key. Allow must be atomic:
// pruning expired timestamps, counting the remainder, and recording now when
// capacity remains happen as one operation, so two concurrent checks cannot
// both observe the last free slot.
type WindowStore interface {
	Allow(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Result, error)
}

// Result is the raw store outcome Allow reports back to the limiter.
type Result struct {
	Allowed bool
	// Count is the number of recorded timestamps inside the window after the
	// operation (including the one just recorded, when allowed).
	Count int
	// Oldest is the earliest timestamp still inside the window; zero when the
	// window is empty.
	Oldest time.Time
}

// Limiter is identity-agnostic: keys must already encode the user and the
// action class being limited (see Key). Per-plan budgets are the caller's
// concern.
type Limiter struct {
	store WindowStore
	now   func() time.Time
}

// New builds a limiter over the given store.
func New(store WindowStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock overrides the limiter's time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check reports whether one more request fits inside the trailing window and,
// when it does, records it in the same atomic operation. A store failure
// denies the request: silently disabling rate limiting on backend errors is
// worse than throttling during an outage.
func (l *Limiter) Check(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := l.now()
	res, err := l.store.Allow(ctx, key, now, window, max)
	if err != nil {
		return Decision{Allowed: false, ResetAt: now.Add(window)}, fmt.Errorf("ratelimit: window store: %w", err)
	}

	remaining := max - res.Count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now.Add(window)
	if !res.Oldest.IsZero() {
		resetAt = res.Oldest.Add(window)
	}
	return Decision{Allowed: res.Allowed, Remaining: remaining, ResetAt: resetAt}, nil
}

// Key builds the canonical limiter key for a user and action class.
func Key(action, userID string) string {
	return action + ":user:" + userID
}

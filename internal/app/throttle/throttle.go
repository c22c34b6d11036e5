/*
Package throttle escalates repeated failed logins into a timed account freeze.

Per username the throttle is in one of three effective states: Clear (no
counter), Warned (counter below the threshold) and Locked (counter at or
above it). Reaching the threshold freezes the external user record exactly
once, at the transition. The counter expires on its own after the configured
window, but the freeze does NOT: a frozen account stays frozen until an
operator clears it.
*/
package throttle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// CounterStore is the narrow interface to the shared failure counters.
type CounterStore interface {
	// Increment bumps the counter for username atomically and returns the
	// new count. An expired counter restarts at 1. The expiry is pushed to
	// expiresAt on every call.
	Increment(ctx context.Context, username string, expiresAt time.Time) (int, error)

	// Reset deletes the counter for username. Missing counters are a no-op.
	Reset(ctx context.Context, username string) error
}

// Freezer flips the external user record's status to frozen.
type Freezer interface {
	Freeze(ctx context.Context, username string) error
}

// Result describes the throttle state after a recorded failure.
type Result struct {
	// Count is the consecutive failure count within the window.
	Count int

	// Remaining is how many more failures are allowed before the freeze.
	Remaining int

	// Locked is true once Count has reached the threshold.
	Locked bool

	// JustLocked is true only on the failure that crossed the threshold;
	// the freeze side effect fires on exactly that call.
	JustLocked bool
}

// Throttle implements the per-username failure counter with freeze escalation.
type Throttle struct {
	counters  CounterStore
	freezer   Freezer
	threshold int
	window    time.Duration
	logger    zerolog.Logger
}

// New returns a throttle that freezes an account after threshold consecutive
// failures within window.
func New(counters CounterStore, freezer Freezer, threshold int, window time.Duration) *Throttle {
	return &Throttle{
		counters:  counters,
		freezer:   freezer,
		threshold: threshold,
		window:    window,
		logger:    logx.Logger().With().Str("component", "login_throttle").Logger(),
	}
}

// Fail records a failed authentication attempt for username.
func (t *Throttle) Fail(ctx context.Context, username string) (Result, error) {
	count, err := t.counters.Increment(ctx, username, time.Now().Add(t.window))
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Count:      count,
		Locked:     count >= t.threshold,
		JustLocked: count == t.threshold,
	}
	if remaining := t.threshold - count; remaining > 0 {
		result.Remaining = remaining
	}

	if result.JustLocked {
		t.logger.Warn().Str("username", username).Int("count", count).
			Msg("Failure threshold reached, freezing account")
		if err := t.freezer.Freeze(ctx, username); err != nil {
			return result, err
		}
	}

	return result, nil
}

// Success clears the counter after a successful authentication. It runs
// regardless of account status; a frozen account stays frozen.
func (t *Throttle) Success(ctx context.Context, username string) error {
	return t.counters.Reset(ctx, username)
}

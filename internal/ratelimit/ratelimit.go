// Package ratelimit bounds how many moderation actions one admin can take
// per hour. The window guards against a compromised or runaway admin account
// mass-actioning the platform.
package ratelimit

import (
	"context"
	"time"

	dErrors "warden/pkg/domain-errors"
)

// Result describes one limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Store counts events per key within a window.
type Store interface {
	// Allow records one event against key and reports whether it fit under
	// limit within the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error
}

// Limiter enforces the per-admin action budget.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Check consumes one action from the admin's budget. Exhaustion maps to the
// rate-limit error code; a broken limiter store fails open rather than
// blocking all moderation.
func (l *Limiter) Check(ctx context.Context, adminID string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	res, err := l.store.Allow(ctx, "admin:"+adminID, l.limit, l.window)
	if err != nil {
		return nil
	}
	if !res.Allowed {
		return dErrors.New(dErrors.CodeRateLimited, "admin action limit reached, try again later")
	}
	return nil
}

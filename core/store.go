package core

import (
	"context"
	"time"
)

// TokenStore is the storage port for issued secrets. Implementations must
// make every mutation visible to subsequent reads immediately and must make
// each per-key read-modify-write atomic under concurrent access.
//
// Get performs no expiry check of its own; callers compare ExpiresAt
// against their clock so the store stays a plain keyed record.
type TokenStore interface {
	Save(ctx context.Context, t AuthToken, ttl time.Duration) error
	Get(ctx context.Context, hash string) (*AuthToken, error)
	MarkUsed(ctx context.Context, hash string) error
	// IncrementAttempts adds one failed attempt and returns the new count.
	// An unknown hash is a no-op returning 0.
	IncrementAttempts(ctx context.Context, hash string) (int, error)
	Delete(ctx context.Context, hash string) error
	// SweepExpired removes tokens whose expiry has passed at the moment of
	// the sweep and reports how many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

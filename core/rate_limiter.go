package core

import (
	"context"
	"time"
)

// Decision is the outcome of a rate-limit check. RetryAfter is only set
// when Allowed is false.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter caps initiation requests per normalized identifier within a
// fixed window, with lazy window reset.
//
// Check is a pure read so a caller can refuse for other reasons before any
// quota is spent. Reserve checks and records in one atomic step; it is what
// the Manager uses, closing the race two concurrent callers would otherwise
// have between a check and a separate record.
type RateLimiter interface {
	Check(ctx context.Context, key string) (Decision, error)
	Reserve(ctx context.Context, key string) (Decision, error)
}

package core

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter counts requests per key in a fixed window held in a
// process-local map. Windows reset lazily at check time.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	keys   map[string]*windowCount
	limit  int
	window time.Duration
	now    func() time.Time
}

type windowCount struct {
	count     int
	windowEnd time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		keys:   make(map[string]*windowCount),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *MemoryRateLimiter) Check(_ context.Context, key string) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	wc, exists := r.keys[key]
	if !exists || !now.Before(wc.windowEnd) {
		return Decision{Allowed: true}, nil
	}
	if wc.count >= r.limit {
		return Decision{RetryAfter: wc.windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

func (r *MemoryRateLimiter) Reserve(_ context.Context, key string) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	wc, exists := r.keys[key]
	if !exists || !now.Before(wc.windowEnd) {
		r.keys[key] = &windowCount{
			count:     1,
			windowEnd: now.Add(r.window),
		}
		return Decision{Allowed: true}, nil
	}

	if wc.count >= r.limit {
		return Decision{RetryAfter: wc.windowEnd.Sub(now)}, nil
	}

	wc.count++
	return Decision{Allowed: true}, nil
}

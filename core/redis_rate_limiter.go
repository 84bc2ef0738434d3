package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares one fixed window per key across replicas. The
// counter key expires with the window, giving the same lazy reset as the
// in-memory limiter.
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

func NewRedisRateLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "auth-rate:"
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

func (r *RedisRateLimiter) key(id string) string {
	return fmt.Sprintf("%s%s", r.keyPrefix, id)
}

func (r *RedisRateLimiter) Check(ctx context.Context, key string) (Decision, error) {
	script := redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false then
			return {1, 0}
		end
		if tonumber(current) >= tonumber(ARGV[1]) then
			return {0, redis.call("TTL", KEYS[1])}
		end
		return {1, 0}
	`)

	res, err := script.Run(ctx, r.client, []string{r.key(key)}, r.limit).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	return decisionFromScript(res)
}

func (r *RedisRateLimiter) Reserve(ctx context.Context, key string) (Decision, error) {
	script := redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false then
			redis.call("SET", KEYS[1], 1, "EX", ARGV[2])
			return {1, 0}
		end
		if tonumber(current) >= tonumber(ARGV[1]) then
			return {0, redis.call("TTL", KEYS[1])}
		end
		redis.call("INCR", KEYS[1])
		return {1, 0}
	`)

	res, err := script.Run(ctx, r.client, []string{r.key(key)}, r.limit, int(r.window.Seconds())).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	return decisionFromScript(res)
}

func decisionFromScript(res []int64) (Decision, error) {
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected script result: %v", res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	retry := time.Duration(res[1]) * time.Second
	if retry <= 0 {
		retry = time.Second
	}
	return Decision{RetryAfter: retry}, nil
}

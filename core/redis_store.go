package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists tokens as JSON values with a key TTL matching the
// token lifetime, so Redis itself collects expired tokens.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "auth-token:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(hash string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, hash)
}

func (s *RedisStore) Save(ctx context.Context, t AuthToken, ttl time.Duration) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(t.TokenHash), raw, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, hash string) (*AuthToken, error) {
	val, err := s.client.Get(ctx, s.key(hash)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t AuthToken
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *RedisStore) MarkUsed(ctx context.Context, hash string) error {
	script := redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return 0 end
local obj = cjson.decode(val)
if obj.used then return -1 end
obj.used = true
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(obj), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(obj))
end
return 1
`)

	res, err := script.Run(ctx, s.client, []string{s.key(hash)}).Int()
	if err != nil {
		return err
	}
	switch res {
	case 0:
		return ErrNotFound
	case -1:
		return ErrUsed
	default:
		return nil
	}
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, hash string) (int, error) {
	script := redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return 0 end
local obj = cjson.decode(val)
obj.attempts = (obj.attempts or 0) + 1
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(obj), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(obj))
end
return obj.attempts
`)

	count, err := script.Run(ctx, s.client, []string{s.key(hash)}).Int()
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisStore) Delete(ctx context.Context, hash string) error {
	return s.client.Del(ctx, s.key(hash)).Err()
}

// SweepExpired is a no-op on Redis: Save sets a key TTL equal to the token
// lifetime, so expired tokens are already gone.
func (s *RedisStore) SweepExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

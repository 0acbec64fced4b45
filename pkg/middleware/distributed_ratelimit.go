package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimitStore is a Redis-backed LimitStore so limits are shared across
// instances. The window starts on the first request for a key and is enforced
// by key expiry.
type RedisLimitStore struct {
	client *redis.Client
	prefix string
}

// NewRedisLimitStore creates a Redis-backed store
func NewRedisLimitStore(client *redis.Client, prefix string) *RedisLimitStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimitStore{
		client: client,
		prefix: prefix,
	}
}

// Increment counts a request against the key's current window
func (s *RedisLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", s.prefix, key)

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}

	// The expiry is set only on the first hit so the window does not slide
	// under sustained traffic.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire: %w", err)
		}
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), ttl, nil
}

// Reset clears the rate limit for a key (for testing or admin purposes)
func (s *RedisLimitStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, fmt.Sprintf("%s:%s", s.prefix, key)).Err()
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisCounterStore keeps counters in Redis so limits hold across restarts
type RedisCounterStore struct {
	client redis.UniversalClient
}

var _ CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore creates a store over client
func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Incr implements CounterStore with INCR, arming EXPIRE when the counter was
// just created
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := redisKeyPrefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to arm counter expiry: %w", err)
		}
	}
	return count, nil
}

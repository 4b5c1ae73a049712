package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRateKeyPrefix = "kyc:ratelimit:"

// redisCounter is the subset of redis.Cmdable RedisRateStore uses.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisRateStore shares limits across API instances with a fixed window of
// Burst requests per Burst/Rate seconds. It is coarser than the in-process
// bucket but needs only INCR and EXPIRE.
type RedisRateStore struct {
	client redisCounter
	now    func() time.Time
}

// NewRedisRateStore wraps a go-redis client.
func NewRedisRateStore(client redisCounter) *RedisRateStore {
	return &RedisRateStore{client: client, now: time.Now}
}

// Allow counts one request in the current window for key.
func (s *RedisRateStore) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0, nil
	}
	window := time.Duration(math.Ceil(float64(rule.Burst)/rule.Rate)) * time.Second
	now := s.now()
	start := now.Truncate(window)
	windowKey := fmt.Sprintf("%s%s:%d", redisRateKeyPrefix, key, start.Unix())

	count, err := s.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, windowKey, window+time.Second).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
	}
	if count <= int64(rule.Burst) {
		return true, 0, nil
	}
	return false, start.Add(window).Sub(now), nil
}

var _ RateStore = (*RedisRateStore)(nil)

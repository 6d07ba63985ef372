package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBackend implements Backend as a sorted-set sliding window:
// ZADD records each event at its unix-nano score; ZREMRANGEBYSCORE prunes
// everything before the window start; ZCARD/ZRANGE read the remainder.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) PruneAndCount(ctx context.Context, key string, windowStart time.Time) (int, time.Time, error) {
	if err := b.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10)).Err(); err != nil {
		return 0, time.Time{}, err
	}
	count, err := b.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}
	oldest, err := b.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	var oldestTime time.Time
	if len(oldest) > 0 {
		oldestTime = time.Unix(0, int64(oldest[0].Score))
	}
	return int(count), oldestTime, nil
}

func (b *RedisBackend) Record(ctx context.Context, key string, at time.Time) error {
	score := float64(at.UnixNano())
	member := strconv.FormatInt(at.UnixNano(), 10)
	return b.client.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err()
}

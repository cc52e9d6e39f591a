package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps call logs in Redis sorted sets scored by call time in
// milliseconds, so every service instance shares the same windows.
// Timestamps come from the caller, which keeps the limiter's clock injectable.
type RedisStore struct {
	client redis.Cmdable
	seq    atomic.Uint64
}

// NewRedisStore creates a Redis-backed window store
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Drops expired entries and returns the remaining cardinality in one round trip.
var countScript = redis.NewScript(`
local key = KEYS[1]
local cutoff = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
return redis.call('ZCARD', key)
`)

// Count returns the number of calls for key after since
func (s *RedisStore) Count(ctx context.Context, key string, since time.Time) (int, error) {
	n, err := countScript.Run(ctx, s.client, []string{key}, since.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: count window %s: %w", key, err)
	}
	return n, nil
}

// Add records a call at the given time and refreshes the key TTL
func (s *RedisStore) Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.PExpire(ctx, key, ttl+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit: record call %s: %w", key, err)
	}
	return nil
}

var _ WindowStore = (*RedisStore)(nil)

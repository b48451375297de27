package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/member-auth/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps failures talking to Redis.
var ErrUnavailable = errors.New("rate limit store unavailable")

// slidingWindowLua atomically evicts, counts and appends in one round trip.
// KEYS[1] = window key (sorted set of request timestamps)
// ARGV[1] = now, unix millis
// ARGV[2] = eviction cutoff (now - window), unix millis, inclusive
// ARGV[3] = window, millis (key expiry)
// ARGV[4] = max requests
// ARGV[5] = unique member for this request
//
// Returns 1 when admitted, 0 when the window is full. A rejected request is
// not recorded.
var slidingWindowLua = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[4]) then
  return 0
end

redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// Limiter is a sliding-window request counter keyed by arbitrary strings.
// Timestamps live in a Redis sorted set per key so every process sharing
// the Redis instance sees the same window.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewLimiter creates a Limiter. now may be nil to use time.Now.
func NewLimiter(client redis.UniversalClient, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{redis: client, prefix: "rl:", now: now}
}

// Allow records one request for key and reports whether it fits within
// maxRequests per window. Entries at or before now-window are evicted first.
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	if maxRequests <= 0 {
		return false, nil
	}
	if window <= 0 {
		return false, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	now := l.now()
	res, err := slidingWindowLua.Run(ctx, l.redis,
		[]string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		window.Milliseconds(),
		maxRequests,
		id.NewAt(now),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}

// Reset clears all recorded requests for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

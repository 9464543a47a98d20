package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript bumps the window counter and sets the expiry on first hit so
// the counter and its TTL stay atomic.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window limiter shared across instances.
type RedisLimiter struct {
	rdb    *redis.Client
	window time.Duration
	max    int
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		window: window,
		max:    max,
		prefix: "paydesk:ratelimit:",
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	seconds := int(l.window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	count, err := incrScript.Run(ctx, l.rdb, []string{l.prefix + key}, seconds).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	return count <= int64(l.max), nil
}

func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

package verdict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, then adds the hit
// only when there is room. Scores are unix milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisCounter shares the sliding-window log between replicas through Redis.
type RedisCounter struct {
	rdb    redis.Scripter
	prefix string
}

// RedisCounterOption configures a RedisCounter.
type RedisCounterOption func(*RedisCounter)

// WithKeyPrefix namespaces the sorted-set keys.
func WithKeyPrefix(prefix string) RedisCounterOption {
	return func(c *RedisCounter) { c.prefix = strings.Trim(prefix, ":") }
}

// NewRedisCounter builds a counter on top of an existing client.
func NewRedisCounter(rdb redis.Scripter, opts ...RedisCounterOption) *RedisCounter {
	c := &RedisCounter{rdb: rdb, prefix: "acquisitions:ratelimit"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCounter) Hit(ctx context.Context, rule Rule, key string, now time.Time) (Usage, error) {
	redisKey := c.prefix + ":" + rule.Name + ":" + key
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, c.rdb, []string{redisKey},
		nowMs, rule.Window.Milliseconds(), rule.Max, member).Int64Slice()
	if err != nil {
		return Usage{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return Usage{}, fmt.Errorf("redis sliding window: unexpected reply %v", res)
	}

	return Usage{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: time.UnixMilli(res[2]),
	}, nil
}

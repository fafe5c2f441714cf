package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript prunes, counts and conditionally records in one server-side
// step so concurrent checks against the same key serialize inside Redis.
// ARGV: now_ms, window_ms, max, member. Returns {allowed, count, oldest_ms}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  allowed = 1
  count = count + 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest_ms = 0
if oldest[2] then
  oldest_ms = tonumber(oldest[2])
end
return {allowed, count, oldest_ms}
`)

// RedisStore implements WindowStore on a Redis sorted set per key, scored by
// request timestamp in milliseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Result, error) {
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	raw, err := allowScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, member).Result()
	if err != nil {
		return Result{}, err
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected script reply %T", raw)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldestMS, _ := vals[2].(int64)

	res := Result{Allowed: allowed == 1, Count: int(count)}
	if oldestMS > 0 {
		res.Oldest = time.UnixMilli(oldestMS)
	}
	return res, nil
}

var _ WindowStore = (*RedisStore)(nil)

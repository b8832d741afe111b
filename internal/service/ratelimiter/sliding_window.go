// Package ratelimiter holds the Redis-backed sliding-window limiter shared by
// every API replica.
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// SlidingWindow admits at most Quota requests per key within any Window.
type SlidingWindow struct {
	redis  redis.Scripter
	script *redis.Script
	window time.Duration
	quota  int
	prefix string
	now    func() time.Time
}

// NewSlidingWindow returns nil when rdb is nil or the limit is disabled.
func NewSlidingWindow(rdb redis.Scripter, window time.Duration, quota int) *SlidingWindow {
	if rdb == nil || window <= 0 || quota <= 0 {
		return nil
	}
	return &SlidingWindow{
		redis:  rdb,
		script: redis.NewScript(luaSlidingWindowScript),
		window: window,
		quota:  quota,
		prefix: "ratelimit:evaluate:",
		now:    time.Now,
	}
}

// Entries older than the window are trimmed before counting. A request that is
// admitted is recorded with its own timestamp; a rejected one is not.
const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local quota = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count < quota then
  redis.call("ZADD", key, now, member)
  redis.call("PEXPIRE", key, window)
  return { 1, 0 }
end

local retry = window
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if oldest[2] ~= nil then
  retry = tonumber(oldest[2]) + window - now
end
return { 0, retry }
`

// Allow reports whether key may proceed and, if not, how long until it may.
// Redis errors fail open.
func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	nowMs := l.now().UnixMilli()
	res, err := l.script.Run(ctx, l.redis,
		[]string{l.prefix + key},
		nowMs, l.window.Milliseconds(), l.quota, ulid.Make().String(),
	).Int64Slice()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, err
	}
	if len(res) < 2 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}
	retry := time.Duration(res[1]) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return res[0] == 1, retry, nil
}

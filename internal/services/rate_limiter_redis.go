package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the key to the window, then either rejects or
// records the call, all in one round trip. Returns {allowed, count_before,
// oldest_score}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local cutoff = ARGV[2]
local max = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. cutoff)
local count = redis.call('ZCARD', key)
if count >= max then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, oldest[2] or now}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, ttl)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count, oldest[2] or now}
`)

// RedisRateLimiter keeps one sorted set per (community, user, action) scored
// by event time in milliseconds. Check and record are atomic.
type RedisRateLimiter struct {
	client redis.Scripter
	prefix string
	options
}

func NewRedisRateLimiter(client redis.Scripter, opts ...Option) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: "ratelimit", options: buildOptions(opts)}
}

func (l *RedisRateLimiter) key(userID, communityID, action string) string {
	return fmt.Sprintf("%s:%s:%s:%s", l.prefix, communityID, userID, action)
}

func (l *RedisRateLimiter) CheckAndRecord(ctx context.Context, userID, communityID, action string, policy models.ActionPolicy) (*RateDecision, error) {
	if !policy.Valid() {
		return nil, invalid("rate policy needs positive max_actions and window_minutes")
	}

	now := l.now()
	window := policy.Window()
	nowMs := now.UnixMilli()

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.key(userID, communityID, action)},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-window.Milliseconds(), 10),
		policy.MaxActions,
		uuid.NewString(),
		strconv.FormatInt(window.Milliseconds(), 10),
	).Slice()
	if err != nil {
		rateLimitChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("redis rate limit: %w: %w", ErrBackendUnavailable, err)
	}
	if len(res) != 3 {
		rateLimitChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("redis rate limit: %w: unexpected reply %v", ErrBackendUnavailable, res)
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	oldest := now
	if score, ok := res[2].(string); ok {
		if ms, err := strconv.ParseFloat(score, 64); err == nil {
			oldest = time.UnixMilli(int64(ms)).UTC()
		}
	}

	if allowed == 0 {
		rateLimitChecks.WithLabelValues("limited").Inc()
		return &RateDecision{Allowed: false, Remaining: 0, ResetTime: oldest.Add(window)}, nil
	}
	rateLimitChecks.WithLabelValues("allowed").Inc()
	return &RateDecision{
		Allowed:   true,
		Remaining: policy.MaxActions - int(count) - 1,
		ResetTime: oldest.Add(window),
	}, nil
}

package rpcserver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const airdropKeyPrefix = "ratelimit:airdrop:"

// tokenBucketScript refills and consumes atomically. Times are in
// milliseconds so sub-second refills work.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per millisecond
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])       -- seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	tokens = math.min(burst, tokens + ((now - last_update) * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// RedisLimiter is a token bucket shared by every escrowd using the same
// Redis.
type RedisLimiter struct {
	client redis.Scripter
	rate   float64 // tokens per millisecond
	burst  int
	ttl    int // seconds
	now    func() time.Time
}

// NewRedisLimiter allows burst requests per key, refilling one token every
// refill.
func NewRedisLimiter(client redis.Scripter, burst int, refill time.Duration) *RedisLimiter {
	full := refill * time.Duration(burst)
	return &RedisLimiter{
		client: client,
		rate:   1 / float64(refill.Milliseconds()),
		burst:  burst,
		ttl:    int(math.Ceil(full.Seconds())) + 1,
		now:    time.Now,
	}
}

// Allow consumes a token for key if one is available.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{airdropKeyPrefix + key},
		l.rate, l.burst, l.now().UnixMilli(), l.ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("airdrop rate limit: %w", err)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// NewRedisClient connects to url (redis://...) and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

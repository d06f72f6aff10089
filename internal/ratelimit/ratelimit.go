// Package ratelimit implements the per-user token-bucket rate limiter:
// atomic refill+consume against a shared store using a deterministic script.
// Backed by github.com/redis/go-redis/v9's EVAL when REDIS_URL is
// configured, falling back to an in-memory sync.Mutex-guarded-map
// implementation otherwise.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter grants or denies a request for a given key.
type Limiter interface {
	Allow(ctx context.Context, key string, ratePerMin, burst int) (bool, error)
}

// luaRefillConsume atomically refills a bucket proportional to elapsed
// time and consumes one token iff available. KEYS[1] is the bucket hash;
// ARGV: now(unix seconds), rate-per-min, burst, ttl-seconds.
const luaRefillConsume = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate_per_min = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts)
local refill = elapsed * (rate_per_min / 60.0)
tokens = math.min(burst, tokens + refill)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("EXPIRE", key, ttl)
return allowed
`

// RedisLimiter is the Redis-backed token bucket.
type RedisLimiter struct {
	client    *redis.Client
	ttlSecond int
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, ttlSecond: 120}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, ratePerMin, burst int) (bool, error) {
	res, err := l.client.Eval(ctx, luaRefillConsume, []string{"ratelimit:" + key},
		time.Now().Unix(), ratePerMin, burst, l.ttlSecond).Result()
	if err != nil {
		return false, err
	}
	allowed, _ := res.(int64)
	return allowed == 1, nil
}

// bucket is one in-memory token bucket's state.
type bucket struct {
	tokens float64
	ts     time.Time
}

// MemLimiter is the in-process fallback used when no REDIS_URL is
// configured.
type MemLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemLimiter() *MemLimiter {
	return &MemLimiter{buckets: make(map[string]*bucket)}
}

func (l *MemLimiter) Allow(_ context.Context, key string, ratePerMin, burst int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(burst), ts: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.ts).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	refill := elapsed * (float64(ratePerMin) / 60.0)
	b.tokens = minF(float64(burst), b.tokens+refill)
	b.ts = now

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// KeyFor derives the bucket key from the X-User-Id header value, or
// "global" when absent.
func KeyFor(userID string) string {
	if userID == "" {
		return "global"
	}
	return userID
}

// Package cache implements the Telemetry/Cache Service's TTL cache with
// deterministic tool-args key derivation, backed by
// github.com/redis/go-redis/v9 when configured and an in-process map guarded
// by a sync.RWMutex with a time.Ticker TTL sweep otherwise. In the in-process
// cache a Get holds the read lock, so a concurrent Set waits for it.
package cache

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the storage boundary for cached tool results.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache backs the cache with Redis SET/GET with an expiry.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, "cache:"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, "cache:"+key, value, ttl).Err()
}

type memEntry struct {
	value   string
	expires time.Time
}

// MemCache is the in-process fallback. Get treats an expired entry as a
// miss, and a time.Ticker sweep deletes expired entries every 30 seconds,
// so stale entries don't accumulate under low read volume.
type MemCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	done    chan struct{}
}

func NewMemCache() *MemCache {
	c := &MemCache{entries: make(map[string]memEntry), done: make(chan struct{})}
	go c.sweep()
	return c
}

func (c *MemCache) sweep() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

func (c *MemCache) Close() { close(c.done) }

func (c *MemCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

var normalizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// ToolKey derives the deterministic cache key for a tool call: keys
// sorted, floats rounded to 2 decimals,
// strings lowercased with non-alphanumerics replaced by "_", each value
// truncated to 50 chars.
func ToolKey(name string, args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{"tool", name}
	for _, k := range keys {
		parts = append(parts, k, normalizeValue(args[k]))
	}
	return strings.Join(parts, ":")
}

func normalizeValue(v interface{}) string {
	var s string
	switch t := v.(type) {
	case float64:
		s = strconv.FormatFloat(math.Round(t*100)/100, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(math.Round(float64(t)*100)/100, 'f', -1, 64)
	case int, int32, int64:
		s = fmt.Sprintf("%v", t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = strings.ToLower(s)
	s = normalizeRe.ReplaceAllString(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

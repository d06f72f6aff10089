package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/cache"
)

func TestMemCache_SetGet(t *testing.T) {
	c := cache.NewMemCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
	val, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", val)
}

func TestMemCache_Miss(t *testing.T) {
	c := cache.NewMemCache()
	defer c.Close()
	_, found, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemCache_Expiry(t *testing.T) {
	c := cache.NewMemCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k2", "v2", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := c.Get(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, found, "entry should have expired")
}

func TestToolKey_DeterministicAndOrderIndependent(t *testing.T) {
	a := cache.ToolKey("search", map[string]interface{}{"query": "weather", "limit": 5.0})
	b := cache.ToolKey("search", map[string]interface{}{"limit": 5.0, "query": "weather"})
	assert.Equal(t, a, b)
}

func TestToolKey_RoundsFloats(t *testing.T) {
	a := cache.ToolKey("calc", map[string]interface{}{"x": 1.23456})
	b := cache.ToolKey("calc", map[string]interface{}{"x": 1.234001})
	assert.Equal(t, a, b)
}

func TestToolKey_NormalizesStrings(t *testing.T) {
	a := cache.ToolKey("search", map[string]interface{}{"query": "Hello World!"})
	b := cache.ToolKey("search", map[string]interface{}{"query": "hello_world_"})
	assert.Equal(t, a, b)
}

package utils

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	cache, err := NewCache[string](4, time.Minute)
	require.NoError(t, err)

	_, ok := cache.Get("missing")
	require.False(t, ok)

	cache.Put("a", "1")
	value, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", value)

	cache.Delete("a")
	_, ok = cache.Get("a")
	require.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache, err := NewCache[int](4, 10*time.Millisecond)
	require.NoError(t, err)

	cache.Put("a", 1)
	_, ok := cache.Get("a")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get("a")
	require.False(t, ok)
}

func TestCacheKeep(t *testing.T) {
	cache, err := NewCache[int](4, TTLKeep)
	require.NoError(t, err)

	cache.Put("a", 1)
	time.Sleep(5 * time.Millisecond)
	value, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, value)
}

func TestCacheEviction(t *testing.T) {
	cache, err := NewCache[int](2, TTLKeep)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("k%d", i), i)
	}
	_, ok := cache.Get("k0")
	require.False(t, ok)
	value, ok := cache.Get("k2")
	require.True(t, ok)
	require.Equal(t, 2, value)
}

func TestCachePurge(t *testing.T) {
	cache, err := NewCache[int](4, TTLKeep)
	require.NoError(t, err)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Purge()
	_, ok := cache.Get("a")
	require.False(t, ok)
}

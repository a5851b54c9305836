package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a small LRU with per-entry TTL, used to keep listing results
// alive for the duration of a browse session.
type Cache[V any] struct {
	lru *lru.Cache[string, cacheEntry[V]]
	ttl time.Duration
}

const TTLKeep = time.Duration(-1)

func NewCache[V any](size int, ttl time.Duration) (*Cache[V], error) {
	inner, err := lru.New[string, cacheEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: inner, ttl: ttl}, nil
}

func (c *Cache[V]) Put(key string, value V) {
	entry := cacheEntry[V]{value: value}
	if c.ttl != TTLKeep {
		entry.expires = time.Now().Add(c.ttl)
	}
	c.lru.Add(key, entry)
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	entry, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.lru.Remove(key)
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

package server

import (
	"sync"
	"time"
)

type cacheItem struct {
	value   GenerateResponse
	expires time.Time
}

// responseCache holds generate responses for a fixed time to live
type responseCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cacheItem
	now   func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:   ttl,
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
}

// get returns a live entry, dropping it if it has expired
func (c *responseCache) get(key string) (GenerateResponse, bool) {
	if c.ttl <= 0 {
		return GenerateResponse{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return GenerateResponse{}, false
	}
	if !c.now().Before(item.expires) {
		delete(c.items, key)
		return GenerateResponse{}, false
	}
	return item.value, true
}

// set stores value under key and sweeps expired entries
func (c *responseCache) set(key string, value GenerateResponse) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, item := range c.items {
		if !now.Before(item.expires) {
			delete(c.items, k)
		}
	}
	c.items[key] = cacheItem{value: value, expires: now.Add(c.ttl)}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

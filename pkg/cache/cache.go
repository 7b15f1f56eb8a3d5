package cache

import (
	"sync"
	"time"
)

type entry struct {
	val []byte
	exp time.Time
}

// MemoryCache holds byte payloads for a fixed TTL.
type MemoryCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

func NewMemory(ttl time.Duration) *MemoryCache {
	return &MemoryCache{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[key]
	if !ok || c.now().After(e.exp) {
		return nil, false
	}
	return e.val, true
}

// Set stores val and drops every expired entry, so keys that are never
// read again do not pile up.
func (c *MemoryCache) Set(key string, val []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.purgeLocked(now)
	c.m[key] = entry{val: val, exp: now.Add(c.ttl)}
}

// Len reports how many entries are held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Purge drops expired entries and returns how many were removed.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

func (c *MemoryCache) purgeLocked(now time.Time) int {
	n := 0
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

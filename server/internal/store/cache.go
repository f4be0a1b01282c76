package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// Fingerprint identifies an analysis by its effective settings and the raw
// backend body. Identical inputs always produce identical reports, so the
// fingerprint is a safe cache key.
func Fingerprint(settings traffic.Settings, raw []byte) uint64 {
	d := xxhash.New()
	// Settings has only scalar fields; Marshal cannot fail.
	s, _ := json.Marshal(settings)
	_, _ = d.Write(s)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(raw)
	return d.Sum64()
}

type cacheEntry struct {
	report   *traffic.Report
	storedAt time.Time
}

// Cache holds recent analysis results keyed by Fingerprint. A zero TTL
// disables it. Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]cacheEntry
	ttl     time.Duration
	max     int
	now     func() time.Time

	hits, misses uint64
}

// NewCache creates a Cache holding at most maxEntries results for ttl.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries: make(map[uint64]cacheEntry),
		ttl:     ttl,
		max:     maxEntries,
		now:     time.Now,
	}
}

// Get returns the cached report for key if it is still fresh.
func (c *Cache) Get(key uint64) (*traffic.Report, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.storedAt.After(c.now().Add(-c.ttl)) {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.report, true
}

// Put stores rep under key, dropping the oldest entry when the cache is full.
func (c *Cache) Put(key uint64, rep *traffic.Report) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		var oldestKey uint64
		var oldest time.Time
		first := true
		for k, e := range c.entries {
			if first || e.storedAt.Before(oldest) {
				oldestKey, oldest, first = k, e.storedAt, false
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = cacheEntry{report: rep, storedAt: c.now()}
}

// Len returns the number of cached results, including expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Evict removes expired results and returns how many were dropped.
func (c *Cache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-c.ttl)
	removed := 0
	for k, e := range c.entries {
		if !e.storedAt.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop. It returns immediately when the
// cache is disabled.
func (c *Cache) Run(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}
	runEvictor(ctx, c.ttl, c.Evict, "analysis cache")
}

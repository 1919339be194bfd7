package catalog

import (
	"sync"
	"time"
)

type cacheEntry struct {
	item    EnrichedItem
	expires time.Time
}

// lookupCache is a short-TTL, size-capped cache of successful catalog
// lookups. Entries may serve slightly stale enrichment data; catalog IDs
// never change, so a hit is always the right record.
type lookupCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
}

func newLookupCache(ttl time.Duration, maxEntries int) *lookupCache {
	return &lookupCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *lookupCache) get(key string) (EnrichedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return EnrichedItem{}, false
	}
	if time.Now().After(entry.expires) {
		return EnrichedItem{}, false
	}
	return entry.item, true
}

func (c *lookupCache) set(key string, item EnrichedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.entries[key] = cacheEntry{
		item:    item,
		expires: time.Now().Add(c.ttl),
	}
}

// evictLocked drops all expired entries; if nothing has expired yet it
// removes one arbitrary entry to make room.
func (c *lookupCache) evictLocked() {
	now := time.Now()
	removed := false
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
			removed = true
		}
	}
	if removed {
		return
	}
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}

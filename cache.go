package main

import (
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/dustin/go-humanize"
)

const (
	// cacheEntryMaxSize is the per-element accounted-size cap (10 MiB).
	cacheEntryMaxSize = 10 << 20
	// cacheTotalMaxSize is the sum-of-entries accounted-size cap (200 MiB).
	cacheTotalMaxSize = 200 << 20
	// cacheEntryOverhead is the fixed per-entry bookkeeping cost folded
	// into every entry's accounted size.
	cacheEntryOverhead = 64
)

// cacheEntry is one stored response: its payload, and the last-access
// timestamp used for approximate LRU eviction.
type cacheEntry struct {
	key        string
	payload    []byte
	lastAccess time.Time
}

// accountedSize returns the size counted against the cache's per-entry and
// total caps: payload length + key length + 1 + fixed overhead.
func (e *cacheEntry) accountedSize() int64 {
	return int64(len(e.payload)) + int64(len(e.key)) + 1 + cacheEntryOverhead
}

// Cache is a thread-safe, bounded, approximately-LRU associative store from
// cache key to response payload. It replaces the original source's singly
// linked entry list with the hash-map-plus-timestamp design recommended
// by the spec's redesign notes: eviction still scans every entry to find the
// oldest, but insertion, lookup, and replacement are map operations instead
// of list walks.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	totalSize int64

	enableLogging bool
}

// NewCache creates an empty, process-wide Cache.
func NewCache(enableLogging bool) *Cache {
	return &Cache{
		entries:       make(map[string]*cacheEntry),
		enableLogging: enableLogging,
	}
}

// Find returns a copy of the cached payload for key, or nil, false on a
// miss. A hit refreshes the entry's last-access timestamp.
func (c *Cache) Find(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastAccess = time.Now()
	payload := append([]byte(nil), entry.payload...)
	return payload, true
}

// Add inserts or replaces the entry for key with payload. Returns false
// without modifying the cache if the entry's accounted size exceeds the
// per-element cap. Otherwise entries are evicted (oldest last-access first)
// until there is room, then the new entry is inserted. The eviction loop
// releases and re-acquires c.mu around each RemoveLRU call rather than
// holding it for the whole sequence, so a concurrent Find/Add can observe
// the cache between evictions.
func (c *Cache) Add(key string, payload []byte) bool {
	newEntry := &cacheEntry{
		key:        key,
		payload:    append([]byte(nil), payload...),
		lastAccess: time.Now(),
	}
	newSize := newEntry.accountedSize()
	if newSize > cacheEntryMaxSize {
		return false
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		c.totalSize += newSize - existing.accountedSize()
		c.entries[key] = newEntry
		if c.enableLogging {
			log.Printf("cache UPDATE: %s %s", key, humanize.IBytes(uint64(newSize)))
		}
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	for c.Size()+newSize > cacheTotalMaxSize {
		if !c.RemoveLRU() {
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		// A concurrent Add inserted key while c.mu was released.
		c.totalSize -= existing.accountedSize()
	}
	c.entries[key] = newEntry
	c.totalSize += newSize
	if c.enableLogging {
		log.Printf("cache ADD: %s %s", key, humanize.IBytes(uint64(newSize)))
	}
	return true
}

// RemoveLRU evicts the single least-recently-used entry, if any, and
// reports whether an entry was removed.
func (c *Cache) RemoveLRU() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked()
}

// evictLocked scans every entry, removes the one with the smallest
// last-access timestamp (ties broken by map iteration order), and
// decrements totalSize. Caller must hold c.mu. Returns false if the cache
// was empty.
func (c *Cache) evictLocked() bool {
	var oldestKey string
	var oldestEntry *cacheEntry
	for k, e := range c.entries {
		if oldestEntry == nil || e.lastAccess.Before(oldestEntry.lastAccess) {
			oldestKey = k
			oldestEntry = e
		}
	}
	if oldestEntry == nil {
		return false
	}
	delete(c.entries, oldestKey)
	c.totalSize -= oldestEntry.accountedSize()
	mCacheEvictionsTotal.Inc()
	if c.enableLogging {
		log.Printf("cache EVICT: %s %s", oldestKey, humanize.IBytes(uint64(oldestEntry.accountedSize())))
	}
	return true
}

// Size returns the current accounted total size.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.totalSize = 0
}

// Dump logs every key currently held, for diagnostics.
func (c *Cache) Dump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info("cache DUMP: %d entries, %s total", len(c.entries), humanize.IBytes(uint64(c.totalSize)))
	for k, e := range c.entries {
		log.Info("  %s (%s, last access %s)", k, humanize.IBytes(uint64(e.accountedSize())), e.lastAccess.Format(time.RFC3339))
	}
}

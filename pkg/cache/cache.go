// Package cache implements the keyed entity and listing cache.
//
// Services cache metadata lookups (a library by id, a directory
// listing) under structured keys like "library:abc" or
// "files:abc:dir-1". Writes invalidate by exact key or by glob
// pattern, so a file commit can drop every listing touching its
// directory in one call. Entries expire after a TTL; a background
// janitor reclaims expired entries between reads.
//
// Cache failures never fail the caller: a miss is always a valid
// answer.
package cache

import (
	"path"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called with a zero TTL.
const DefaultTTL = 5 * time.Minute

// entry is one cached value with its expiry instant.
type entry struct {
	value     any
	expiresAt time.Time
}

// expired reports whether the entry is past its TTL at now.
func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is an in-process TTL cache with pattern invalidation.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	entries map[string]*entry
	mu      sync.RWMutex
	closed  bool

	defaultTTL time.Duration
	metrics    Metrics

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// Options configures a Cache.
type Options struct {
	// DefaultTTL applies when Set receives a zero TTL (default: 5m).
	DefaultTTL time.Duration

	// JanitorInterval is how often expired entries are swept
	// (default: 1m; set negative to disable the janitor).
	JanitorInterval time.Duration

	// Metrics is an optional collector (nil skips collection).
	Metrics Metrics
}

// New creates a cache and starts its expiry janitor.
func New(opts Options) *Cache {
	ttl := opts.DefaultTTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	interval := opts.JanitorInterval
	if interval == 0 {
		interval = time.Minute
	}

	c := &Cache{
		entries:     make(map[string]*entry),
		defaultTTL:  ttl,
		metrics:     opts.Metrics,
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}

	if interval > 0 {
		go c.janitor(interval)
	} else {
		close(c.janitorDone)
	}

	return c
}

// Get returns the cached value for key, or false on miss. Expired
// entries count as misses and are dropped lazily.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, false
	}
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss(key)
		return nil, false
	}

	if e.expired(time.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && cur.expired(time.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.recordMiss(key)
		return nil, false
	}

	c.recordHit(key)
	return e.value, true
}

// Set stores value under key for ttl (zero means the default TTL).
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.entries[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	if c.metrics != nil {
		c.metrics.RecordEntryCount(len(c.entries))
	}
}

// Delete removes one key. Deleting a missing key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	delete(c.entries, key)
	if c.metrics != nil {
		c.metrics.RecordEntryCount(len(c.entries))
	}
}

// Invalidate removes every key matching the glob pattern (path.Match
// syntax, e.g. "files:lib-1:*") and returns how many were dropped.
// Malformed patterns match nothing.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	dropped := 0
	for key := range c.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return 0
		}
		if ok {
			delete(c.entries, key)
			dropped++
		}
	}

	if dropped > 0 && c.metrics != nil {
		c.metrics.RecordInvalidation(pattern, dropped)
		c.metrics.RecordEntryCount(len(c.entries))
	}
	return dropped
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.entries = make(map[string]*entry)
	if c.metrics != nil {
		c.metrics.RecordEntryCount(0)
	}
}

// Len returns the number of entries, including not-yet-swept expired
// ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor and drops all entries. Idempotent.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.janitorStop)
		<-c.janitorDone

		c.mu.Lock()
		c.closed = true
		c.entries = nil
		c.mu.Unlock()
	})
}

// janitor periodically sweeps expired entries.
func (c *Cache) janitor(interval time.Duration) {
	defer close(c.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

// sweep removes entries expired at now.
func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	if c.metrics != nil {
		c.metrics.RecordEntryCount(len(c.entries))
	}
}

func (c *Cache) recordHit(key string) {
	if c.metrics != nil {
		c.metrics.RecordHit(keyKind(key))
	}
}

func (c *Cache) recordMiss(key string) {
	if c.metrics != nil {
		c.metrics.RecordMiss(keyKind(key))
	}
}

// keyKind extracts the key's leading segment ("library", "files", ...)
// so metrics stay low-cardinality.
func keyKind(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

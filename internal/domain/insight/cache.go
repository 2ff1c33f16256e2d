package insight

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// defaultMaxEntries bounds the cache size. When full, the oldest entry is
// evicted on insert.
const defaultMaxEntries = 4096

// Cache is a process-local key/value store with per-entry TTL.
// Thread-safe for concurrent access. Expired entries stay resident until
// overwritten or removed by the background sweep, but Get never returns them.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	maxEntries int

	now func() time.Time

	stopChan      chan struct{}
	wg            sync.WaitGroup
	once          sync.Once
	sweepInterval time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides the entry bound. Values <= 0 keep the default.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces the time source. Used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// NewCache creates an empty Cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]Entry),
		maxEntries:    defaultMaxEntries,
		now:           time.Now,
		stopChan:      make(chan struct{}),
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store inserts or replaces the entry for key, stamping StoredAt from the
// cache clock. A ttl <= 0 falls back to DefaultTTL. Storing an existing key
// resets its TTL clock.
func (c *Cache) Store(key string, payload any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now().UTC(),
		TTL:      ttl,
	}
}

// Get returns the payload for key if the entry exists and has not expired.
// Absence and expiry both return ok=false; neither is an error. Get does not
// delete expired entries.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if c.now().Sub(e.StoredAt) >= e.TTL {
		return nil, false
	}
	return e.Payload, true
}

// GetAll returns a snapshot of every entry, expired or not, tagged with its
// staleness. Introspection only.
func (c *Cache) GetAll() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	result := make([]Snapshot, 0, len(c.entries))
	for _, e := range c.entries {
		age := now.Sub(e.StoredAt)
		result = append(result, Snapshot{
			Entry:   e,
			Age:     age,
			Expired: age >= e.TTL,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Len returns the number of resident entries, including expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldestLocked removes the entry with the earliest StoredAt.
// Caller must hold the write lock.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.StoredAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.StoredAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// StartSweep starts the background sweep goroutine, which removes expired
// entries periodically. It stops when ctx is cancelled or Stop is called.
func (c *Cache) StartSweep(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// sweep removes entries past their TTL.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	swept := 0
	for k, e := range c.entries {
		if now.Sub(e.StoredAt) >= e.TTL {
			delete(c.entries, k)
			swept++
		}
	}
	if swept > 0 {
		slog.Debug("insight cache sweep completed",
			"swept_entries", swept,
			"resident_entries", len(c.entries))
	}
}

// Stop gracefully stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (c *Cache) Stop() {
	c.once.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

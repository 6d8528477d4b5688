package cache

import (
	"sync"
	"time"
)

// ttlEntry is an entry in the TTL cache.
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) isExpired() bool {
	return now().After(e.expiresAt)
}

// ttlCache is a thread-safe time-to-live cache. Items are evicted lazily on
// read and periodically by a background cleanup goroutine.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	items   map[string]*ttlEntry[V]
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTTL creates a cache whose entries expire after ttl. cleanupInterval
// controls the background sweep; <= 0 disables the sweep and relies on
// lazy expiry alone.
func NewTTL[V any](ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	opts := applyOptions(options...)
	metrics, err := opts.metrics()
	if err != nil {
		return nil, err
	}

	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V]),
		stats:    NewStatistics(),
		metrics:  metrics,
		evictFn:  opts.evictCallback,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	} else {
		close(c.done)
	}

	return c, nil
}

func (c *ttlCache[V]) cleanupLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *ttlCache[V]) evictExpired() {
	type evicted struct {
		key   string
		value V
	}
	var removed []evicted

	c.mu.Lock()
	for k, e := range c.items {
		if e.isExpired() {
			delete(c.items, k)
			removed = append(removed, evicted{k, e.value})
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	for _, e := range removed {
		c.stats.Eviction()
		if c.evictFn != nil {
			c.evictFn(e.key, e.value)
		}
	}
	if len(removed) > 0 {
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.updateSize(size)
		}
	}
}

// Get retrieves a value by key, treating expired entries as misses.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if exists && entry.isExpired() {
		// Lazy expiry: drop it now rather than waiting for the sweep
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == entry {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.stats.Eviction()
		if c.evictFn != nil {
			c.evictFn(key, entry.value)
		}
		exists = false
	}

	if !exists {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		var zero V
		return zero, false
	}

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return entry.value, true
}

// Set stores a value with the configured TTL.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &ttlEntry[V]{value: value, expiresAt: now().Add(c.ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.RecordSet()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}

	return !exists, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.RecordDelete()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.recordDelete()
			c.metrics.updateSize(size)
		}
		if c.evictFn != nil {
			c.evictFn(key, entry.value)
		}
	}

	return exists, nil
}

// Clear removes all entries.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	evicted := c.items
	c.items = make(map[string]*ttlEntry[V])
	c.mu.Unlock()

	if c.evictFn != nil {
		for k, e := range evicted {
			c.evictFn(k, e.value)
		}
	}

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	return nil
}

// Size returns the current number of entries, including not-yet-swept
// expired ones.
func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all unexpired keys.
func (c *ttlCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for k, e := range c.items {
		if !e.isExpired() {
			keys = append(keys, k)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background cleanup goroutine.
func (c *ttlCache[V]) Close() error {
	c.once.Do(func() {
		close(c.shutdown)
	})
	<-c.done
	return nil
}

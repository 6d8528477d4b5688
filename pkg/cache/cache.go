// Package cache provides generic, thread-safe caches shared across
// concurrently in-flight requests: the query-engine cache (keyed by the
// sorted resolved source set), per-engine HTTP response caches, and the
// loaded-template cache.
//
// Two implementations are offered:
//   - Simple: no eviction, entries live until deleted or cleared
//   - TTL: time-based eviction with a background cleanup goroutine
//
// All caches collect statistics (observability is not optional) and can
// additionally export them as Prometheus metrics via functional options.
package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semserve/errors"
)

// Cache is the interface all cache implementations satisfy.
// The cache is parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry
	// was created, false if an existing one was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns a slice of all keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and releases background resources.
	Close() error
}

// EvictCallback is called when an entry is evicted from the cache.
type EvictCallback[V any] func(key string, value V)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	// registry is optional - if provided, stats are also exposed as
	// Prometheus metrics labelled with name
	registry prometheus.Registerer
	name     string

	evictCallback EvictCallback[V]
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// Ignored if registry is nil or name is empty.
func WithMetrics[V any](registry prometheus.Registerer, name string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && name != "" {
			opts.registry = registry
			opts.name = name
		}
	}
}

// WithEvictionCallback sets a callback invoked for each evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

func (o *cacheOptions[V]) metrics() (*cacheMetrics, error) {
	if o.registry == nil || o.name == "" {
		return nil, nil
	}
	return newCacheMetrics(o.registry, o.name)
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// clock is indirected for TTL expiry tests.
var now = time.Now

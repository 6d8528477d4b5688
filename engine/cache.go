package engine

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/pkg/cache"
)

// Cache is the process-lifetime cache of engine handles, keyed by the
// sorted resolved source set. Engine construction is expensive; concurrent
// requests racing to build the same key are collapsed into one build.
type Cache struct {
	entries cache.Cache[Engine]
	factory Factory

	mu       sync.Mutex
	inflight map[string]*build
}

type build struct {
	done   chan struct{}
	engine Engine
	err    error
}

// CacheOption configures the engine cache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	registry prometheus.Registerer
}

// WithMetrics exports engine-cache statistics on the given registry.
func WithMetrics(registry prometheus.Registerer) CacheOption {
	return func(c *cacheConfig) {
		c.registry = registry
	}
}

// NewCache creates an engine cache around the given factory.
func NewCache(factory Factory, options ...CacheOption) (*Cache, error) {
	if factory == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "engine", "NewCache", "factory is required")
	}

	cfg := &cacheConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	var opts []cache.Option[Engine]
	if cfg.registry != nil {
		opts = append(opts, cache.WithMetrics[Engine](cfg.registry, "engines"))
	}
	entries, err := cache.NewSimple(opts...)
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries:  entries,
		factory:  factory,
		inflight: make(map[string]*build),
	}, nil
}

// Get returns the cached engine for the source set, constructing it on
// first use. sources must already be fully resolved literal URIs; the cache
// never stores entries keyed by unresolved specs.
func (c *Cache) Get(ctx context.Context, sources []string, lenient bool) (Engine, error) {
	key := Key(sources)

	if eng, ok := c.entries.Get(key); ok {
		return eng, nil
	}

	c.mu.Lock()
	if b, ok := c.inflight[key]; ok {
		// Another request is already building this key; wait for it
		c.mu.Unlock()
		select {
		case <-b.done:
			return b.engine, b.err
		case <-ctx.Done():
			return nil, errors.WrapInternal(ctx.Err(), "engine", "Get", "wait for engine build")
		}
	}
	// Re-check under the lock: the builder may have finished between the
	// cache miss and acquiring the mutex
	if eng, ok := c.entries.Get(key); ok {
		c.mu.Unlock()
		return eng, nil
	}
	b := &build{done: make(chan struct{})}
	c.inflight[key] = b
	c.mu.Unlock()

	b.engine, b.err = c.factory(sources, lenient)
	if b.err == nil {
		_, b.err = c.entries.Set(key, b.engine)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(b.done)

	if b.err != nil {
		return nil, errors.WrapInternal(b.err, "engine", "Get", "construct engine")
	}
	return b.engine, nil
}

// Size returns the number of cached engines.
func (c *Cache) Size() int {
	return c.entries.Size()
}

// Keys returns the cached engine keys.
func (c *Cache) Keys() []string {
	return c.entries.Keys()
}

// Stats exposes the underlying cache statistics.
func (c *Cache) Stats() *cache.Statistics {
	return c.entries.Stats()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.entries.Close()
}

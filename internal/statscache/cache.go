// Package statscache memoizes per-unit Census statistics. Successful lookups are
// kept for the life of the process; failures are never cached.
package statscache

import (
	"context"
	"sync"
	"time"

	"github.com/stwalsh4118/territory-mapper/internal/census"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/metrics"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"golang.org/x/sync/singleflight"
)

// Store is an optional shared tier behind the in-process map.
type Store interface {
	Get(ctx context.Context, ref models.UnitRef) (models.UnitStats, bool, error)
	Set(ctx context.Context, ref models.UnitRef, stats models.UnitStats, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a shared tier consulted after the in-process map.
func WithStore(store Store, ttl time.Duration) Option {
	return func(c *Cache) {
		c.store = store
		c.ttl = ttl
	}
}

// Cache wraps a census.Lookup with memoization and request collapsing.
type Cache struct {
	lookup  census.Lookup
	store   Store
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[string]models.UnitStats
	group   singleflight.Group
}

var _ census.Lookup = (*Cache)(nil)

// New creates a Cache in front of lookup.
func New(lookup census.Lookup, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Cache {
	c := &Cache{
		lookup:  lookup,
		log:     log.WithComponent("statscache"),
		metrics: m,
		entries: make(map[string]models.UnitStats),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup satisfies census.Lookup so the cache can stand in for the client.
func (c *Cache) Lookup(ctx context.Context, ref models.UnitRef) (models.UnitStats, error) {
	return c.Stats(ctx, ref)
}

// Stats returns statistics for ref, fetching them at most once per unit while
// concurrent callers for the same unit share a single upstream call.
func (c *Cache) Stats(ctx context.Context, ref models.UnitRef) (models.UnitStats, error) {
	if stats, ok := c.Peek(ref); ok {
		c.metrics.CacheLookup(metrics.CacheTierMemory, metrics.CacheResultHit)
		return stats, nil
	}
	c.metrics.CacheLookup(metrics.CacheTierMemory, metrics.CacheResultMiss)

	// The shared fetch outlives any single caller so a canceled request
	// does not fail the others waiting on the same unit.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ref.Key(), func() (interface{}, error) {
		return c.load(flightCtx, ref)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.UnitStats{}, res.Err
		}
		return res.Val.(models.UnitStats), nil
	case <-ctx.Done():
		return models.UnitStats{}, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, ref models.UnitRef) (models.UnitStats, error) {
	if stats, ok := c.Peek(ref); ok {
		return stats, nil
	}

	if c.store != nil {
		stats, ok, err := c.store.Get(ctx, ref)
		switch {
		case err != nil:
			c.log.Warn("Shared cache read failed; treating as miss", map[string]interface{}{
				"unit":  ref.String(),
				"error": err.Error(),
			})
			c.metrics.CacheLookup(metrics.CacheTierRedis, metrics.CacheResultMiss)
		case ok:
			c.metrics.CacheLookup(metrics.CacheTierRedis, metrics.CacheResultHit)
			c.remember(ref, stats)
			return stats, nil
		default:
			c.metrics.CacheLookup(metrics.CacheTierRedis, metrics.CacheResultMiss)
		}
	}

	stats, err := c.lookup.Lookup(ctx, ref)
	if err != nil {
		return models.UnitStats{}, err
	}

	c.remember(ref, stats)
	if c.store != nil {
		if err := c.store.Set(ctx, ref, stats, c.ttl); err != nil {
			c.log.Warn("Shared cache write failed", map[string]interface{}{
				"unit":  ref.String(),
				"error": err.Error(),
			})
		}
	}
	return stats, nil
}

func (c *Cache) remember(ref models.UnitRef, stats models.UnitStats) {
	c.mu.Lock()
	c.entries[ref.Key()] = stats
	c.mu.Unlock()
}

// Peek returns memoized statistics without triggering a lookup.
func (c *Cache) Peek(ref models.UnitRef) (models.UnitStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats, ok := c.entries[ref.Key()]
	return stats, ok
}

// Len returns the number of memoized units.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ping checks the shared tier, if one is configured.
func (c *Cache) Ping(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Ping(ctx)
}

// HasStore reports whether a shared tier is configured.
func (c *Cache) HasStore() bool {
	return c.store != nil
}

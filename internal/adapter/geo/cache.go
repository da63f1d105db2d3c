package geo

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// CacheObserver receives cache hit/miss notifications, typically metrics.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// point is the exact bit pattern of a coordinate pair.
type point struct{ lat, lon uint64 }

type cached struct {
	id string
	ok bool
}

// CachedLocator wraps a locator with an LRU cache keyed by exact
// coordinates. Several incidents often share the geocoded centre of a city.
type CachedLocator struct {
	inner    domain.CountyLocator
	cache    *lru.Cache[point, cached]
	observer CacheObserver
}

// NewCachedLocator creates a cache decorator around a locator. observer may be nil.
func NewCachedLocator(inner domain.CountyLocator, maxEntries int, observer CacheObserver) (*CachedLocator, error) {
	c, err := lru.New[point, cached](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create locator cache: %w", err)
	}
	return &CachedLocator{inner: inner, cache: c, observer: observer}, nil
}

// Locate serves repeated coordinates from the cache. Misses are cached too,
// since a point outside every polygon stays outside for the whole run.
func (c *CachedLocator) Locate(lat, lon float64) (string, bool) {
	key := point{lat: math.Float64bits(lat), lon: math.Float64bits(lon)}
	if v, ok := c.cache.Get(key); ok {
		if c.observer != nil {
			c.observer.CacheHit()
		}
		return v.id, v.ok
	}
	if c.observer != nil {
		c.observer.CacheMiss()
	}

	id, ok := c.inner.Locate(lat, lon)
	c.cache.Add(key, cached{id: id, ok: ok})
	return id, ok
}

// Package cache provides in-memory caching of store catalog snapshots.
package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

var _ discount.Loader = (*Catalog)(nil)

// Catalog caches catalog snapshots per store. Concurrent misses for the same
// store share a single upstream load.
type Catalog struct {
	next  discount.Loader
	ttl   time.Duration
	items *gocache.Cache
	group singleflight.Group

	mu sync.Mutex
	// gens counts invalidations per store. A load only stores its snapshot
	// if no invalidation happened while it ran.
	gens map[string]uint64
}

// NewCatalog wraps next with a cache of the given TTL. A non-positive ttl
// disables caching.
func NewCatalog(next discount.Loader, ttl time.Duration) *Catalog {
	cleanup := 2 * ttl
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Catalog{
		next:  next,
		ttl:   ttl,
		items: gocache.New(ttl, cleanup),
		gens:  make(map[string]uint64),
	}
}

// Load returns the cached snapshot for storeID, loading it on a miss.
// Snapshots are shared between callers and must not be modified.
//
// The shared load does not inherit the cancellation of the caller that
// started it. Each caller still stops waiting when its own ctx is done.
func (c *Catalog) Load(ctx context.Context, storeID string) (*discount.Catalog, error) {
	if c.ttl <= 0 {
		return c.next.Load(ctx, storeID)
	}
	if v, ok := c.items.Get(storeID); ok {
		return v.(*discount.Catalog), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(storeID, func() (any, error) {
		gen := c.generation(storeID)
		cat, err := c.next.Load(loadCtx, storeID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[storeID] == gen {
			c.items.Set(storeID, cat, gocache.DefaultExpiration)
		}
		c.mu.Unlock()
		return cat, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*discount.Catalog), nil
	}
}

// Invalidate drops the snapshot of storeID. Loads already in flight finish
// for their callers but do not repopulate the cache.
func (c *Catalog) Invalidate(storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[storeID]++
	c.items.Delete(storeID)
	c.group.Forget(storeID)
}

func (c *Catalog) generation(storeID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[storeID]
}

// Len reports the number of cached snapshots.
func (c *Catalog) Len() int {
	return c.items.ItemCount()
}

package treematch

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/treematch/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
)

// DefaultCacheEntries bounds a [MappingCache] created with a non-positive
// size.
const DefaultCacheEntries = 1024

// Key identifies a cached mapping.
type Key struct {
	Src       hast.NodeID
	Dst       hast.NodeID
	Stage     Stage
	MinHeight int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.Src, k.Dst, k.Stage, k.MinHeight)
}

// ComputeFunc produces the mapping for a cache miss.
type ComputeFunc func() (*mappings.VecStore, error)

// MappingCache memoizes finished mappings process-wide. Concurrent misses
// on one key run a single computation; the other callers wait for it and
// share its result. A failed computation is not retained, so the next
// caller computes again.
//
// Cached mappings are shared between callers and must not be modified.
type MappingCache struct {
	flight       singleflight.Group
	entries      *lru.Cache[Key, *mappings.VecStore]
	computations atomic.Int64
}

// NewMappingCache creates a cache retaining at most maxEntries mappings.
func NewMappingCache(maxEntries int) *MappingCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}

	return &MappingCache{
		entries: lru.New(lru.WithMaxEntries[Key, *mappings.VecStore](maxEntries)),
	}
}

// GetOrCompute returns the mapping for key, calling compute at most once
// across concurrent callers. cached is false only for the caller whose
// compute produced the value.
func (c *MappingCache) GetOrCompute(key Key, compute ComputeFunc) (m *mappings.VecStore, cached bool, err error) {
	if hit, ok := c.entries.Get(key); ok {
		return hit, true, nil
	}

	ran := false

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		// A computation for key may have finished between Get and Do.
		if hit, ok := c.entries.Peek(key); ok {
			return hit, nil
		}

		ran = true
		c.computations.Add(1)

		computed, computeErr := compute()
		if computeErr != nil {
			return nil, computeErr
		}

		c.entries.Put(key, computed)

		return computed, nil
	})
	if err != nil {
		return nil, false, err
	}

	m, ok := v.(*mappings.VecStore)
	if !ok {
		return nil, false, fmt.Errorf("mapping cache: unexpected value %T for %s", v, key)
	}

	return m, !ran, nil
}

// Peek returns a cached mapping without computing or counting.
func (c *MappingCache) Peek(key Key) (*mappings.VecStore, bool) {
	return c.entries.Peek(key)
}

// Forget drops key from the cache.
func (c *MappingCache) Forget(key Key) {
	c.entries.Remove(key)
	c.flight.Forget(key.String())
}

// CacheHits returns lookups answered without waiting on a computation.
func (c *MappingCache) CacheHits() int64 { return c.entries.Stats().Hits }

// CacheMisses returns lookups that went through the single-flight path.
func (c *MappingCache) CacheMisses() int64 { return c.entries.Stats().Misses }

// CacheComputations returns how many times a compute function ran.
func (c *MappingCache) CacheComputations() int64 { return c.computations.Load() }

// CacheEntries returns the number of retained mappings.
func (c *MappingCache) CacheEntries() int { return c.entries.Len() }

// Package fieldcache stores computed navigation fields under their 64-bit
// field ids. Eviction is delegated to a ristretto cache (LRU-ish,
// cost-based); invalidation is chunk-level through a secondary index so a
// dirtied chunk drops exactly the entries that read it.
//
// The cache guarantees at-most-one concurrent build per field id:
// concurrent readers of a missing entry share one in-flight build through
// a singleflight group instead of duplicating the work.
package fieldcache

import (
	"strconv"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"warfront/internal/nav"
)

// Field is any cacheable field product. SizeBytes feeds ristretto's cost
// accounting.
type Field interface {
	SizeBytes() int64
}

type chunkKey struct {
	coord nav.Coord
	layer nav.Layer
}

// Cache is safe for concurrent use. Lookups are lock-free (ristretto);
// the dependency index takes a short lock on insert and invalidate.
type Cache struct {
	store *ristretto.Cache[uint64, Field]
	group singleflight.Group

	mu      sync.Mutex
	byChunk map[chunkKey]map[uint64]struct{}
	byLayer [nav.NumLayers]map[uint64]struct{}
	deps    map[uint64][]chunkKey

	hits   func()
	misses func()
}

// New creates a cache bounded to roughly maxBytes of field storage.
func New(maxBytes int64) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[uint64, Field]{
		NumCounters: 1 << 16,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	c := &Cache{
		store:   store,
		byChunk: make(map[chunkKey]map[uint64]struct{}),
		deps:    make(map[uint64][]chunkKey),
	}
	for l := range c.byLayer {
		c.byLayer[l] = make(map[uint64]struct{})
	}
	return c, nil
}

// SetCounters installs hit/miss callbacks (wired to prometheus by the
// ops layer; nil-safe).
func (c *Cache) SetCounters(hit, miss func()) {
	c.hits, c.misses = hit, miss
}

// Get returns the cached field for the id, if present.
func (c *Cache) Get(id nav.FieldID) (Field, bool) {
	f, ok := c.store.Get(uint64(id))
	if ok && c.hits != nil {
		c.hits()
	}
	return f, ok
}

// GetOrBuild returns the cached field or runs build exactly once across
// all concurrent callers for the id. deps lists the chunks the field
// reads; a later Invalidate on any of them drops the entry. A build that
// yields no field (nil, nil) is not cached and returns nil.
func (c *Cache) GetOrBuild(id nav.FieldID, deps []nav.Coord, build func() (Field, error)) (Field, error) {
	if f, ok := c.store.Get(uint64(id)); ok {
		if c.hits != nil {
			c.hits()
		}
		return f, nil
	}
	if c.misses != nil {
		c.misses()
	}

	v, err, _ := c.group.Do(strconv.FormatUint(uint64(id), 16), func() (interface{}, error) {
		if f, ok := c.store.Get(uint64(id)); ok {
			return f, nil
		}
		f, err := build()
		if err != nil || f == nil {
			return nil, err
		}
		c.put(id, deps, f)
		return f, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(Field), nil
}

func (c *Cache) put(id nav.FieldID, deps []nav.Coord, f Field) {
	layer := id.Layer()

	c.mu.Lock()
	keys := make([]chunkKey, 0, len(deps))
	for _, co := range deps {
		k := chunkKey{coord: co, layer: layer}
		keys = append(keys, k)
		if c.byChunk[k] == nil {
			c.byChunk[k] = make(map[uint64]struct{})
		}
		c.byChunk[k][uint64(id)] = struct{}{}
	}
	c.deps[uint64(id)] = keys
	c.byLayer[layer][uint64(id)] = struct{}{}
	c.mu.Unlock()

	c.store.Set(uint64(id), f, f.SizeBytes())
	// Flush the admission buffer so a freshly built field is visible to
	// the readers of the same tick.
	c.store.Wait()
}

// Invalidate drops every entry that read the given chunk on the layer.
func (c *Cache) Invalidate(chunk nav.Coord, layer nav.Layer) {
	k := chunkKey{coord: chunk, layer: layer}

	c.mu.Lock()
	ids := c.byChunk[k]
	delete(c.byChunk, k)
	removed := make([]uint64, 0, len(ids))
	for id := range ids {
		removed = append(removed, id)
		c.dropIndexLocked(id)
	}
	c.mu.Unlock()

	for _, id := range removed {
		c.store.Del(id)
	}
}

// FlushLayer drops every entry of the layer, used after a global island
// recompute.
func (c *Cache) FlushLayer(layer nav.Layer) {
	c.mu.Lock()
	ids := c.byLayer[layer]
	c.byLayer[layer] = make(map[uint64]struct{})
	removed := make([]uint64, 0, len(ids))
	for id := range ids {
		removed = append(removed, id)
		c.dropIndexLocked(id)
	}
	c.mu.Unlock()

	for _, id := range removed {
		c.store.Del(id)
	}
}

// dropIndexLocked removes one id from every secondary index. Caller holds
// c.mu.
func (c *Cache) dropIndexLocked(id uint64) {
	for _, k := range c.deps[id] {
		if m := c.byChunk[k]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(c.byChunk, k)
			}
		}
	}
	delete(c.deps, id)
	delete(c.byLayer[nav.FieldID(id).Layer()], id)
}

// Close releases the underlying store.
func (c *Cache) Close() {
	c.store.Close()
}

package scenesync

import (
	"fmt"
	"log/slog"
	"sync"

	"cogentcore.org/core/base/ordmap"
	"golang.org/x/sync/singleflight"
)

// ResourceKind is the kind of shared default resource.
type ResourceKind uint8

const (
	ResourceAppearance ResourceKind = iota + 1
	ResourceVertices
	ResourceIndices
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceAppearance:
		return "appearance"
	case ResourceVertices:
		return "vertices"
	case ResourceIndices:
		return "indices"
	}
	return fmt.Sprintf("resource(%d)", uint8(k))
}

// ResourceKey identifies a shared default resource. The flags only matter for
// appearances.
type ResourceKey struct {
	Kind        ResourceKind
	Normals     bool
	Highlighted bool
	Transparent bool
}

func (k ResourceKey) String() string {
	if k.Kind != ResourceAppearance {
		return k.Kind.String()
	}
	return fmt.Sprintf("%s[normals=%t highlighted=%t transparent=%t]",
		k.Kind, k.Normals, k.Highlighted, k.Transparent)
}

// Resource is the set of engine objects backing one cache entry. Primary is
// what adaptors bind to; Owned are destroyed on eviction.
type Resource struct {
	Primary ObjectID
	Owned   []ObjectID
}

// ResourceBuilder creates the engine objects for key.
type ResourceBuilder func(e Engine, key ResourceKey) (Resource, error)

type cacheEntry struct {
	resource Resource
	// refs counts the cache's own hold plus every live handle.
	refs int
}

// ResourceCache hands out shared default resources by key. An entry is created
// on first demand and reclaimed by Sweep once only the cache holds it.
type ResourceCache struct {
	engine  Engine
	build   ResourceBuilder
	logger  *slog.Logger
	sf      singleflight.Group
	mu      sync.Mutex
	entries *ordmap.Map[ResourceKey, *cacheEntry]
}

// NewResourceCache returns a cache creating entries with build. A nil build
// uses DefaultResources.
func NewResourceCache(e Engine, build ResourceBuilder, logger *slog.Logger) *ResourceCache {
	if build == nil {
		build = DefaultResources
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceCache{
		engine:  e,
		build:   build,
		logger:  logger,
		entries: ordmap.New[ResourceKey, *cacheEntry](),
	}
}

// ResourceHandle is one holder's share of a cache entry.
type ResourceHandle struct {
	cache    *ResourceCache
	key      ResourceKey
	object   ObjectID
	released bool
}

func (h *ResourceHandle) Key() ResourceKey { return h.key }

func (h *ResourceHandle) Object() ObjectID { return h.object }

// Release gives the share back. Releasing twice is a no-op.
func (h *ResourceHandle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.cache.release(h.key)
}

// Acquire returns a handle on the entry for key, creating it on first demand.
// Two live handles for the same key always refer to the same object.
func (c *ResourceCache) Acquire(key ResourceKey) (*ResourceHandle, error) {
	c.mu.Lock()
	if e, ok := c.entries.ValueByKeyTry(key); ok {
		e.refs++
		c.mu.Unlock()
		return &ResourceHandle{cache: c, key: key, object: e.resource.Primary}, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries.ValueByKeyTry(key); ok {
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		res, err := c.build(c.engine, key)
		if err != nil {
			return nil, fmt.Errorf("build resource %s: %w", key, err)
		}
		e := &cacheEntry{resource: res, refs: 1}
		c.mu.Lock()
		c.entries.Add(key, e)
		c.mu.Unlock()
		c.logger.Debug("resource created", "key", key.String(), "object", uint64(res.Primary))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := v.(*cacheEntry)

	c.mu.Lock()
	e.refs++
	c.mu.Unlock()
	return &ResourceHandle{cache: c, key: key, object: e.resource.Primary}, nil
}

func (c *ResourceCache) release(key ResourceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.ValueByKeyTry(key)
	if !ok || e.refs <= 1 {
		c.logger.Error("release of unheld resource", "key", key.String())
		panic(InvariantError{Msg: "release of unheld resource " + key.String()})
	}
	e.refs--
}

// RefCount returns the reference count of key, including the cache's own
// hold, or zero when the entry does not exist.
func (c *ResourceCache) RefCount(key ResourceKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.ValueByKeyTry(key); ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live entries.
func (c *ResourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Keys returns the live entry keys in creation order.
func (c *ResourceCache) Keys() []ResourceKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// Sweep evicts every entry held only by the cache and returns their keys.
func (c *ResourceCache) Sweep() []ResourceKey {
	c.mu.Lock()
	var evicted []ResourceKey
	var resources []Resource
	for _, kv := range c.entries.Order {
		if kv.Value.refs == 1 {
			evicted = append(evicted, kv.Key)
			resources = append(resources, kv.Value.resource)
		}
	}
	for _, key := range evicted {
		c.entries.DeleteKey(key)
	}
	c.mu.Unlock()

	for i, res := range resources {
		c.destroy(res)
		c.logger.Debug("resource reclaimed", "key", evicted[i].String())
	}
	return evicted
}

// Close evicts every entry regardless of outstanding handles.
func (c *ResourceCache) Close() {
	c.mu.Lock()
	resources := make([]Resource, 0, c.entries.Len())
	for _, kv := range c.entries.Order {
		resources = append(resources, kv.Value.resource)
	}
	c.entries.Reset()
	c.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		c.destroy(resources[i])
	}
}

func (c *ResourceCache) destroy(res Resource) {
	for i := len(res.Owned) - 1; i >= 0; i-- {
		c.engine.Destroy(res.Owned[i])
	}
}

package tuple

import (
	"sync/atomic"
)

// DefaultCacheSize is the number of identifiers kept by a Cache created with a
// non-positive size.
const DefaultCacheSize = 1024

// Cache hands out pre-boxed single-element tuples for the identifiers 0..Size()-1 so that
// hot paths do not allocate when wrapping a node identifier into a Tuple.
//
// A Cache is owned by whoever constructs it and may be shared between containers; its
// methods are safe for concurrent use. Reset drops every cached instance: tuples handed
// out earlier remain valid values and compare equal to the ones handed out afterwards,
// only future lookups observe the new generation.
type Cache struct {
	size  int
	table atomic.Pointer[cacheTable]
}

type cacheTable struct {
	generation uint64
	slots      []Tuple
}

// NewCache returns a cache holding single-element tuples for identifiers below size.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{size: size}
	c.table.Store(newCacheTable(size, 0))
	return c
}

func newCacheTable(size int, generation uint64) *cacheTable {
	slots := make([]Tuple, size)
	for i := range slots {
		slots[i] = flat1{e0: int64(i)}
	}
	return &cacheTable{generation: generation, slots: slots}
}

// Of returns the single-element tuple holding id. Identifiers outside of the cached range
// fall back to Of1.
func (c *Cache) Of(id int64) Tuple {
	if c == nil || id < 0 || id >= int64(c.size) {
		return Of1(id)
	}
	return c.table.Load().slots[id]
}

// Size returns the number of cached identifiers.
func (c *Cache) Size() int {
	return c.size
}

// Generation returns the number of resets performed so far.
func (c *Cache) Generation() uint64 {
	return c.table.Load().generation
}

// Reset invalidates every cached instance.
func (c *Cache) Reset() {
	for {
		old := c.table.Load()
		if c.table.CompareAndSwap(old, newCacheTable(c.size, old.generation+1)) {
			return
		}
	}
}

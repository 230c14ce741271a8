package typedb

import (
	"container/list"
	"sync"

	"pyintel/internal/engine/values"
)

// moduleCache keeps the most recently imported rehydrated modules. Evicted
// modules stay valid for whoever holds them; a later import rehydrates a
// fresh copy.
type moduleCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	onEvict  func(name string)
}

type cacheEntry struct {
	name   string
	module *values.Module
}

func newModuleCache(capacity int) *moduleCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &moduleCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached module and marks it most recently used.
func (c *moduleCache) Get(name string) (*values.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[name]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).module, true
}

// Peek returns the cached module without touching the recency order.
func (c *moduleCache) Peek(name string) (*values.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[name]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).module, true
}

func (c *moduleCache) Put(name string, m *values.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[name]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).module = m
		return
	}
	if c.order.Len() >= c.capacity {
		c.evictOldestLocked()
	}
	c.items[name] = c.order.PushFront(&cacheEntry{name: name, module: m})
}

func (c *moduleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *moduleCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// evictOldestLocked drops the least recently used module. Caller holds c.mu.
func (c *moduleCache) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	name := back.Value.(*cacheEntry).name
	delete(c.items, name)
	if c.onEvict != nil {
		c.onEvict(name)
	}
}

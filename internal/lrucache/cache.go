// Package lrucache implements a size-bounded byte cache with
// least-recently-used eviction and per-entry TTL. Concurrent gets for the
// same key share a single load.
package lrucache

import (
	"container/heap"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
)

type Cache struct {
	size, maxSize int64
	ttl           time.Duration
	items         map[string]*item
	accessList    accessList
	m             sync.RWMutex

	numCached metrics.EWMA
	numTotal  metrics.EWMA

	closeC chan struct{}
}

type Loader func() ([]byte, error)

func New(maxSize int64, ttl time.Duration) *Cache {
	c := &Cache{
		maxSize:   maxSize,
		ttl:       ttl,
		items:     make(map[string]*item),
		numCached: metrics.NewEWMA1(),
		numTotal:  metrics.NewEWMA1(),
		closeC:    make(chan struct{}),
	}
	go c.tick()
	return c
}

func (c *Cache) tick() {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.numCached.Tick()
			c.numTotal.Tick()
		case <-c.closeC:
			return
		}
	}
}

func (c *Cache) Close() {
	close(c.closeC)
}

func (c *Cache) Clear() {
	c.m.Lock()
	c.items = make(map[string]*item)
	for _, i := range c.accessList {
		i.timer.Stop()
	}
	c.accessList = nil
	c.size = 0
	c.m.Unlock()
}

func (c *Cache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.items)
}

func (c *Cache) Size() int64 {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.size
}

// Utilization is the percentage of gets served from the cache recently.
func (c *Cache) Utilization() int {
	total := c.numTotal.Rate()
	if total == 0 {
		return 0
	}
	return int((100 * c.numCached.Rate()) / total)
}

// Get returns the cached value for key, calling loader once to fill it on
// a miss. Concurrent gets for the same key wait for one loader call.
func (c *Cache) Get(key string, loader Loader) ([]byte, error) {
	i := c.getItem(key)
	return c.getValue(i, loader)
}

// RemovePrefix drops every cached entry whose key starts with prefix.
// Entries still loading are unmapped so later gets reload; their pending
// install is skipped.
func (c *Cache) RemovePrefix(prefix string) {
	c.m.Lock()
	defer c.m.Unlock()
	for key, i := range c.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if i.installed {
			c.removeItem(i)
		} else {
			delete(c.items, key)
			i.removed = true
		}
	}
}

func (c *Cache) getItem(key string) *item {
	c.m.Lock()
	defer c.m.Unlock()

	c.numTotal.Update(1)

	i, ok := c.items[key]
	if ok {
		c.numCached.Update(1)
	} else {
		i = &item{key: key}
		c.items[key] = i
	}
	return i
}

func (c *Cache) getValue(i *item, loader Loader) ([]byte, error) {
	i.Lock()
	defer i.Unlock()

	if i.loaded {
		if i.err != nil {
			return nil, i.err
		}
		c.updateAccessTime(i)
		return i.value, nil
	}

	i.value, i.err = loader()
	i.loaded = true

	return c.handleNewItem(i)
}

func (c *Cache) handleNewItem(i *item) ([]byte, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if i.err != nil {
		delete(c.items, i.key)
		return nil, i.err
	}

	// Removed while loading. Serve the value but do not install it.
	if i.removed {
		return i.value, nil
	}

	// Do not cache values larger than cache size.
	if int64(len(i.value)) > c.maxSize {
		delete(c.items, i.key)
		return i.value, nil
	}

	c.makeRoom(i)

	c.size += int64(len(i.value))

	i.installed = true
	i.lastAccessed = time.Now()
	heap.Push(&c.accessList, i)

	i.timer = time.AfterFunc(c.ttl, func() {
		c.m.Lock()
		if i.index != -1 {
			c.removeItem(i)
		}
		c.m.Unlock()
	})

	return i.value, nil
}

func (c *Cache) updateAccessTime(i *item) {
	c.m.Lock()
	defer c.m.Unlock()

	if i.index == -1 {
		return
	}
	i.lastAccessed = time.Now()
	heap.Fix(&c.accessList, i.index)

	i.timer.Reset(c.ttl)
}

func (c *Cache) makeRoom(i *item) {
	for c.maxSize-c.size < int64(len(i.value)) {
		i := c.accessList[0]
		c.removeItem(i)
	}
}

func (c *Cache) removeItem(i *item) {
	i.timer.Stop()
	i.installed = false
	delete(c.items, i.key)
	heap.Remove(&c.accessList, i.index)
	c.size -= int64(len(i.value))
}

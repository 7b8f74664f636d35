// File path: internal/embedding/cache.go
package embedding

import (
	"container/list"
	"sync"
)

type cacheEntry struct {
	key    string
	vector []float32
}

// vectorCache is a small LRU of text-to-vector results. Query texts and
// evidence snippets repeat heavily across report requests, so most Embed
// calls after warm-up are pure cache hits.
type vectorCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	ll       *list.List
}

func newVectorCache(size int) *vectorCache {
	if size <= 0 {
		size = 512
	}
	return &vectorCache{
		capacity: size,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
	}
}

func (c *vectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		if entry, ok := elem.Value.(cacheEntry); ok {
			return entry.vector, true
		}
	}
	return nil, false
}

func (c *vectorCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value = cacheEntry{key: key, vector: vector}
		c.ll.MoveToFront(elem)
		return
	}
	elem := c.ll.PushFront(cacheEntry{key: key, vector: vector})
	c.items[key] = elem
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail != nil {
			c.ll.Remove(tail)
			if entry, ok := tail.Value.(cacheEntry); ok {
				delete(c.items, entry.key)
			}
		}
	}
}

func (c *vectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *vectorCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.ll = list.New()
}

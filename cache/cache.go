// Package cache provides a small generic, mutex-guarded in-memory map.
// Grounded on the teacher's cache/cache.go Cache[T] shape; job.Registry
// wraps this for TTL and grace-window eviction, which this primitive itself
// does not know about.
package cache

import (
	"sync"

	"github.com/capsoftware/cap-media-server/log"
)

type Cache[T interface{}] struct {
	cache map[string]T
	mutex sync.Mutex
}

func New[T interface{}]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]T),
	}
}

func (c *Cache[T]) Remove(requestID, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
	log.Log(requestID, "removing from cache", "key", key)
}

func (c *Cache[T]) Get(key string) (T, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	v, ok := c.cache[key]
	return v, ok
}

func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = value
}

// Range calls fn for every entry currently in the cache. fn must not call
// back into the Cache.
func (c *Cache[T]) Range(fn func(key string, value T)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for k, v := range c.cache {
		fn(k, v)
	}
}

func (c *Cache[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cache)
}

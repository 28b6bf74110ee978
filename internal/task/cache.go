package task

import (
	"container/list"
	"sync"
)

// Cache shares tasks by key so concurrent requests for the same key resolve once.
//
// Pending tasks are always retained. Failed tasks are dropped as soon as they fail so the
// next request retries. Succeeded tasks are kept in least-recently-used order, bounded by
// the capacity given to [NewCache].
type Cache[T any] struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry[T]
	lru      *list.List
	capacity int
}

type cacheEntry[T any] struct {
	key  string
	task *Task[T]
	elem *list.Element
}

// NewCache creates a cache holding up to capacity completed tasks. capacity <= 0 keeps
// no completed tasks, so only in-flight requests are shared.
func NewCache[T any](capacity int) *Cache[T] {
	return &Cache[T]{
		entries:  make(map[string]*cacheEntry[T]),
		lru:      list.New(),
		capacity: capacity,
	}
}

// Resolve returns the task registered under key, or creates one with factory.
//
// An empty key always produces a fresh, unshared task. factory runs under the cache lock
// and must only schedule work, never wait on it.
func (c *Cache[T]) Resolve(key string, factory func() *Task[T]) *Task[T] {
	if key == "" {
		return factory()
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.elem != nil {
			c.lru.MoveToFront(e.elem)
		}
		c.mu.Unlock()
		return e.task
	}

	t := factory()
	c.entries[key] = &cacheEntry[T]{key: key, task: t}
	c.mu.Unlock()

	// Attached after unlocking: an already settled task calls back synchronously.
	t.AddListener(func(T) { c.retain(key, t) })
	t.AddFailureListener(func(error) { c.drop(key, t) })
	return t
}

// Get returns the task for key without creating one.
func (c *Cache[T]) Get(key string) (*Task[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// Evict forgets key. Holders of the task are unaffected.
func (c *Cache[T]) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// EvictSettled forgets key unless its task is still pending, and reports whether it did.
func (c *Cache[T]) EvictSettled(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.task.State() == Pending {
		return false
	}
	c.remove(e)
	return true
}

// Clear forgets every key.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry[T])
	c.lru.Init()
}

// Len is the number of keys currently registered, pending or completed.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) retain(key string, t *Task[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.task != t || e.elem != nil {
		return
	}
	if c.capacity <= 0 {
		c.remove(e)
		return
	}

	e.elem = c.lru.PushFront(e)
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back().Value.(*cacheEntry[T])
		c.remove(oldest)
	}
}

func (c *Cache[T]) drop(key string, t *Task[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.task == t {
		c.remove(e)
	}
}

func (c *Cache[T]) remove(e *cacheEntry[T]) {
	if e.elem != nil {
		c.lru.Remove(e.elem)
	}
	delete(c.entries, e.key)
}

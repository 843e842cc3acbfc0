package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds at most capacity entries, each valid until its deadline.
// Reads of an expired entry miss and drop it.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List // front is most recently used
	now      func() time.Time
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if !c.now().Before(e.deadline) {
		c.unlink(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value for the cache TTL.
func (c *LRUCache[T]) Set(key string, value T) {
	c.SetUntil(key, value, c.now().Add(c.ttl))
}

// SetUntil stores value with an explicit deadline, so entries restored from
// disk keep their original age.
func (c *LRUCache[T]) SetUntil(key string, value T, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value = &entry[T]{key: key, value: value, deadline: deadline}
		c.order.MoveToFront(el)
		return
	}

	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, deadline: deadline})
	for c.order.Len() > c.capacity {
		c.unlink(c.order.Back())
	}
}

func (c *LRUCache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.unlink(el)
	}
}

// CleanExpired drops every entry past its deadline and reports how many.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[T]).deadline) {
			c.unlink(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRUCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[T]) unlink(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

package grading

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// DefaultCacheSize is the default number of compiled goals kept.
const DefaultCacheSize = 256

// Cache is a thread-safe LRU of compiled goal programs, keyed by the goal
// text.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	maxSize int
	hits    int64
	misses  int64
}

type cacheEntry struct {
	goal    string
	program *vm.Program
}

// NewCache returns a Cache holding at most maxSize programs. A size below
// one selects DefaultCacheSize.
func NewCache(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		items:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the program compiled for goal, marking it most recently used.
func (c *Cache) Get(goal string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[goal]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).program, true
}

// Put stores program for goal, evicting the least recently used entry when
// full.
func (c *Cache) Put(goal string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[goal]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).program = program
		return
	}
	c.items[goal] = c.lru.PushFront(&cacheEntry{goal: goal, program: program})
	for c.lru.Len() > c.maxSize {
		back := c.lru.Back()
		delete(c.items, back.Value.(*cacheEntry).goal)
		c.lru.Remove(back)
	}
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

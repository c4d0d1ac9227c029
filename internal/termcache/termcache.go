// Package termcache tracks which terms have already been defined during a
// lecture session so duplicate definition lookups are skipped.
package termcache

import (
	"container/list"
	"strings"
)

// DefaultCapacity is the entry limit used when New is given a non-positive capacity.
const DefaultCapacity = 512

// Normalize canonicalises a term for cache keying: lowercase, surrounding
// whitespace trimmed, internal whitespace runs collapsed to single spaces.
// Two spellings with equal normalized forms are considered the same term.
func Normalize(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// Cache is a fixed-capacity set of normalized terms with least-recently-used
// eviction. Get and Put count as use; Contains and FilterNew do not.
//
// Cache is not safe for concurrent use. Each session confines its cache to the
// pipeline goroutine.
type Cache struct {
	capacity int
	order    *list.List               // front = most recently used
	entries  map[string]*list.Element // normalized term -> order element
}

// New returns an empty Cache holding at most capacity terms.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Contains reports whether term is cached without refreshing its recency.
func (c *Cache) Contains(term string) bool {
	_, ok := c.entries[Normalize(term)]
	return ok
}

// Get reports whether term is cached, promoting it to most-recently-used on hit.
func (c *Cache) Get(term string) bool {
	el, ok := c.entries[Normalize(term)]
	if !ok {
		return false
	}
	c.order.MoveToFront(el)
	return true
}

// Put inserts term or refreshes its recency. When the cache is full, inserting
// a new term evicts the least-recently-used entry.
func (c *Cache) Put(term string) {
	key := Normalize(term)
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(string))
		}
	}
	c.entries[key] = c.order.PushFront(key)
}

// FilterNew returns, in input order, the terms whose normalized forms are not
// cached. Repeats within the call are deduplicated; the first spelling wins.
// The cache itself is not modified.
func (c *Cache) FilterNew(terms []string) []string {
	fresh := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		key := Normalize(term)
		if _, ok := c.entries[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, term)
	}
	return fresh
}

// Len returns the number of cached terms.
func (c *Cache) Len() int {
	return c.order.Len()
}

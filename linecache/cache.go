// Package linecache provides a bounded, content-addressed history of the most
// recently observed cache line contents.
//
// The history is keyed by the full byte content of a line. Recency is tracked
// with an index-linked list laid over a fixed slot array, so lookups go through
// a single map access and eviction reuses the slot of the least recently used
// entry.
package linecache

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a cache is created with a capacity that
// cannot hold any line.
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

const nilSlot = -1

type slot struct {
	key  string
	prev int
	next int
}

// Cache remembers the most recent Capacity distinct line contents. A Cache is
// owned by a single analysis run and is not safe for concurrent use.
type Cache struct {
	capacity int
	index    map[string]int
	slots    []slot
	head     int // most recently used
	tail     int // least recently used
	stats    Stats
}

// New creates a cache that holds at most capacity distinct line contents.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	c := &Cache{
		capacity: capacity,
		index:    make(map[string]int, capacity),
		slots:    make([]slot, 0, capacity),
		head:     nilSlot,
		tail:     nilSlot,
	}

	return c, nil
}

// Capacity returns the maximum number of line contents the cache holds.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Len returns the number of line contents currently held.
func (c *Cache) Len() int {
	return len(c.index)
}

// Contains reports whether the exact content of line is currently held. It
// does not change the recency order.
func (c *Cache) Contains(line []byte) bool {
	_, found := c.index[string(line)]
	if found {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}

	return found
}

// Insert records line as the most recently used content. If the content is
// already present only its recency is refreshed. Otherwise, when the cache is
// full, the least recently used content is evicted to make room.
func (c *Cache) Insert(line []byte) {
	if i, found := c.index[string(line)]; found {
		c.moveToFront(i)
		c.stats.Refreshes++

		return
	}

	key := string(line)

	var i int
	if len(c.slots) < c.capacity {
		c.slots = append(c.slots, slot{key: key, prev: nilSlot, next: nilSlot})
		i = len(c.slots) - 1
	} else {
		i = c.evictOldest()
		c.slots[i].key = key
	}

	c.pushFront(i)
	c.index[key] = i
	c.stats.Insertions++
}

// Stats returns a copy of the lookup and eviction counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

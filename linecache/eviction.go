package linecache

// evictOldest unlinks the least recently used slot, forgets its key, and
// returns the slot index for reuse.
func (c *Cache) evictOldest() int {
	i := c.tail
	c.unlink(i)
	delete(c.index, c.slots[i].key)
	c.stats.Evictions++

	return i
}

func (c *Cache) moveToFront(i int) {
	if c.head == i {
		return
	}

	c.unlink(i)
	c.pushFront(i)
}

func (c *Cache) pushFront(i int) {
	s := &c.slots[i]
	s.prev = nilSlot
	s.next = c.head

	if c.head != nilSlot {
		c.slots[c.head].prev = i
	}

	c.head = i

	if c.tail == nilSlot {
		c.tail = i
	}
}

func (c *Cache) unlink(i int) {
	s := &c.slots[i]

	if s.prev != nilSlot {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}

	if s.next != nilSlot {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}

	s.prev = nilSlot
	s.next = nilSlot
}

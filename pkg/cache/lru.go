package cache

import "container/list"

// lruCache is the tier-1 exact-match cache: a bounded map with
// least-recently-used eviction. Not safe for concurrent use; the Store
// serializes access.
type lruCache struct {
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type lruItem struct {
	key   string
	entry Entry
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *lruCache) get(key string) (Entry, bool) {
	elem, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem).entry, true
}

func (c *lruCache) put(key string, entry Entry) {
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&lruItem{key: key, entry: entry})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem).key)
	}
}

func (c *lruCache) remove(key string) {
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

func (c *lruCache) len() int {
	return c.order.Len()
}

package render

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds how many rendered messages are kept.
const DefaultCacheSize = 64

// Cache memoizes File by path. Maildir file names change whenever flags
// change, so a stale entry is never looked up again.
type Cache struct {
	lru *lru.Cache[string, *Message]
}

// NewCache returns a cache holding up to size messages.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *Message](size)
	if err != nil {
		panic(err)
	}
	return &Cache{lru: c}
}

// Get returns the rendered message at path, rendering it on a miss.
func (c *Cache) Get(path string) (*Message, error) {
	if m, ok := c.lru.Get(path); ok {
		return m, nil
	}
	m, err := File(path)
	if err != nil {
		return nil, err
	}
	c.lru.Add(path, m)
	return m, nil
}

// Len returns the number of cached messages.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops everything.
func (c *Cache) Purge() { c.lru.Purge() }

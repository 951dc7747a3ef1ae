// ABOUTME: TTL/LRU cache deduplicating redelivered inbound transport messages.
// ABOUTME: Keys are (tenant, sender, platform message id) tuples.

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks recently seen inbound message keys so a transport redelivery
// is processed at most once. Entries expire after a TTL; when the cache is
// full the oldest entry is evicted in O(1) via an insertion-order list.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List
	ttl     time.Duration
	maxSize int

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Cache with the given TTL and capacity and starts a
// background sweep of expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// MessageKey builds the dedupe key for an inbound message.
func MessageKey(tenantID, senderID, messageID string) string {
	return strings.Join([]string{tenantID, senderID, messageID}, ":")
}

// Seen atomically checks whether the key was already recorded within the
// TTL, recording it if not. Returns true for duplicates. The check and the
// record are one critical section, so two concurrent deliveries of the same
// message cannot both pass.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && time.Since(e.seenAt) < c.ttl {
		e.seenAt = time.Now()
		c.order.MoveToBack(e.element)
		return true
	}

	c.recordLocked(key)
	return false
}

// Len returns the number of tracked keys, expired entries included until the
// next sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// recordLocked inserts a key, evicting the oldest entry at capacity.
// Must hold mu.
func (c *Cache) recordLocked(key string) {
	if e, ok := c.entries[key]; ok {
		e.seenAt = time.Now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			k, _ := oldest.Value.(string)
			c.order.Remove(oldest)
			delete(c.entries, k)
		}
	}

	c.entries[key] = &entry{seenAt: time.Now(), element: c.order.PushBack(key)}
}

// sweepLoop periodically drops expired entries until Close.
func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

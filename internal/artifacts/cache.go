package artifacts

import (
	"sync"
	"time"
)

const (
	textCacheCapacity = 50
	textCacheTTL       = 5 * time.Minute
)

type textCacheEntry struct {
	text      string
	expiresAt time.Time
}

// textCache is a small bounded cache for script/transcript/log reads, so
// repeated get_podcast / resource reads of the same artifact don't
// round-trip to S3 every time.
type textCache struct {
	mu      sync.Mutex
	entries map[string]textCacheEntry
	order   []string
}

func newTextCache() *textCache {
	return &textCache{entries: make(map[string]textCacheEntry)}
}

func (c *textCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.text, true
}

func (c *textCache) put(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
		if len(c.order) > textCacheCapacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = textCacheEntry{text: text, expiresAt: time.Now().Add(textCacheTTL)}
}

func (c *textCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/apresai/podcaster-async/internal/domain"
)

const (
	cacheCapacity = 256
	cacheTTL      = 5 * time.Second
)

type cacheEntry struct {
	rec       *domain.TaskRecord
	expiresAt time.Time
}

// CachedStore wraps a Store with a small bounded read-through cache for
// Get, so a control surface hammering get_podcast on a recently-queried
// task doesn't round-trip to DynamoDB/Postgres every call. Writes always
// go straight to the backing store; Update and AppendLog then invalidate
// the cache entry, while Create caches the newly created record.
type CachedStore struct {
	backing Store
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string // simple FIFO eviction order
}

// NewCachedStore wraps backing with a read-through cache.
func NewCachedStore(backing Store) *CachedStore {
	return &CachedStore{backing: backing, entries: make(map[string]cacheEntry)}
}

func (c *CachedStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	err := c.backing.Create(ctx, rec)
	if err == nil {
		c.put(rec)
	}
	return err
}

func (c *CachedStore) Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	err := c.backing.Update(ctx, taskID, mutate)
	c.invalidate(taskID)
	return err
}

func (c *CachedStore) AppendLog(ctx context.Context, taskID, line string) error {
	err := c.backing.AppendLog(ctx, taskID, line)
	c.invalidate(taskID)
	return err
}

func (c *CachedStore) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	if rec, ok := c.lookup(taskID); ok {
		return rec, nil
	}
	rec, err := c.backing.Get(ctx, taskID)
	if err == nil {
		c.put(rec)
	}
	return rec, err
}

func (c *CachedStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error) {
	// Listing always goes to the backing store: caching paginated,
	// filtered result sets isn't worth the invalidation complexity for
	// the read pattern this serves (a handful of recent tasks per user).
	return c.backing.List(ctx, ownerID, limit, cursor)
}

func (c *CachedStore) Close() error { return c.backing.Close() }

func (c *CachedStore) lookup(taskID string) (*domain.TaskRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[taskID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	cp := *e.rec
	return &cp, true
}

func (c *CachedStore) put(rec *domain.TaskRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *rec
	if _, exists := c.entries[rec.TaskID]; !exists {
		c.order = append(c.order, rec.TaskID)
		if len(c.order) > cacheCapacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[rec.TaskID] = cacheEntry{rec: &cp, expiresAt: time.Now().Add(cacheTTL)}
}

func (c *CachedStore) invalidate(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, taskID)
}

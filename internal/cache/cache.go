// Package cache implements the dedup cache keyed by canonical URL.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/deusflow/musicpulse/internal/news"
	"github.com/deusflow/musicpulse/internal/storage"
)

// Entry is what a successful fetch and parse leaves behind. The raw page body
// is never stored.
type Entry struct {
	URL       string       `json:"url"`
	Status    int          `json:"status"`
	FetchedAt time.Time    `json:"fetched_at"`
	Article   news.Article `json:"article"`
}

// Cache fronts a storage.Store with an in-memory map. Entries never expire.
// With enabled=false both Lookup and Store are no-ops and stored entries stay
// untouched for later runs.
type Cache struct {
	store   storage.Store // may be nil: memory only
	enabled bool
	log     *slog.Logger

	mu    sync.RWMutex
	items map[string]Entry

	keyLocks sync.Map // key -> *sync.Mutex
}

func New(store storage.Store, enabled bool, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		store:   store,
		enabled: enabled,
		log:     log,
		items:   make(map[string]Entry),
	}
}

// Key canonicalizes rawURL.
func Key(rawURL string) string {
	return news.CanonicalURL(rawURL)
}

func (c *Cache) Enabled() bool {
	return c.enabled
}

// Lookup returns the entry for key. Store errors are logged and treated as misses.
func (c *Cache) Lookup(ctx context.Context, key string) (*Entry, bool) {
	if !c.enabled || key == "" {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return &e, true
	}

	if c.store == nil {
		return nil, false
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Warn("cache entry unreadable", "key", key, "error", err)
		return nil, false
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return &e, true
}

// Store writes e through to the backend. Writers of the same key are serialized.
func (c *Cache) Store(ctx context.Context, key string, e Entry) error {
	if !c.enabled || key == "" {
		return nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if c.store != nil {
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := c.store.Put(ctx, key, raw); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

// Clear removes every entry, in memory and in the backend, regardless of mode.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]Entry)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	l, _ := c.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

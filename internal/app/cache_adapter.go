package app

import (
	"context"
	"fmt"

	"github.com/deusflow/musicpulse/internal/cache"
	"github.com/deusflow/musicpulse/internal/storage"
)

// openCache builds the dedup cache over the configured backend. PostgreSQL
// is only used when asked for, so failing to reach it ends the run; local
// backends degrade to an in-memory cache instead.
func (a *App) openCache(ctx context.Context, store storage.Store) (*cache.Cache, error) {
	cfg := a.cfg
	log := a.log.With("component", "cache")

	if store == nil && (!cfg.NoCache || cfg.ClearCache) {
		s, err := storage.Open(cfg.CacheBackend, cfg.CacheDSN)
		switch {
		case err != nil && cfg.CacheBackend == "postgres":
			return nil, fmt.Errorf("open %s cache: %w", cfg.CacheBackend, err)
		case err != nil:
			log.Warn("cache store unavailable, using memory only",
				"backend", cfg.CacheBackend, "dsn", cfg.CacheDSN, "error", err)
		default:
			store = s
		}
	}
	if store != nil {
		a.closers = append(a.closers, store.Close)
	}

	c := cache.New(store, !cfg.NoCache, log)
	if cfg.ClearCache {
		if err := c.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear cache: %w", err)
		}
		log.Info("cache cleared", "backend", cfg.CacheBackend)
	}
	if store != nil {
		if n, err := store.Len(ctx); err == nil {
			log.Info("cache ready", "backend", cfg.CacheBackend, "entries", n, "enabled", c.Enabled())
		}
	}
	return c, nil
}

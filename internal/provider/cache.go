package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SymbolCache memoizes a symbol listing for a configurable TTL so hot API
// paths don't hit the filesystem or network on every request. The clock is
// injectable for tests.
type SymbolCache struct {
	fetch func(ctx context.Context) ([]string, error)
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	symbols []string
	stamp   time.Time
	log     *slog.Logger
}

// NewSymbolCache wraps fetch with a TTL cache. A non-positive ttl disables
// caching and every call goes through to fetch.
func NewSymbolCache(fetch func(ctx context.Context) ([]string, error), ttl time.Duration) *SymbolCache {
	return &SymbolCache{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
		log:   slog.Default().With("component", "symbol-cache"),
	}
}

// Symbols returns the cached listing, refreshing it when stale. A failed
// refresh keeps serving the previous listing if one exists.
func (c *SymbolCache) Symbols(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := c.ttl > 0 && !c.stamp.IsZero() && c.now().Sub(c.stamp) < c.ttl
	if fresh {
		return c.symbols, nil
	}

	symbols, err := c.fetch(ctx)
	if err != nil {
		if c.symbols != nil {
			c.log.Warn("refresh failed, serving stale listing", "err", err)
			return c.symbols, nil
		}
		return nil, err
	}

	c.symbols = symbols
	c.stamp = c.now()
	return symbols, nil
}

// Invalidate drops the cached listing; the next call refetches.
func (c *SymbolCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols = nil
	c.stamp = time.Time{}
}

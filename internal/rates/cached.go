package rates

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/core"
)

// DefaultTTL matches the hourly refresh of the rate widget.
const DefaultTTL = time.Hour

// Cached wraps a Provider with a per-base in-memory TTL cache. A stale or
// missing entry triggers one upstream fetch; fetch errors are never cached.
type Cached struct {
	upstream Provider
	ttl      time.Duration

	mu      sync.Mutex
	entries map[core.CurrencyCode]cachedTable
	now     func() time.Time
}

type cachedTable struct {
	table     Table
	fetchedAt time.Time
}

func NewCached(upstream Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{
		upstream: upstream,
		ttl:      ttl,
		entries:  make(map[core.CurrencyCode]cachedTable),
		now:      time.Now,
	}
}

func (c *Cached) Fetch(ctx context.Context, base core.CurrencyCode) (Table, error) {
	c.mu.Lock()
	entry, ok := c.entries[base]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.table, nil
	}
	c.mu.Unlock()

	table, err := c.upstream.Fetch(ctx, base)
	if err != nil {
		return Table{}, err
	}

	c.mu.Lock()
	c.entries[base] = cachedTable{table: table, fetchedAt: c.now()}
	c.mu.Unlock()

	return table, nil
}

// Refresh drops the cached entry for base so the next Fetch hits the
// upstream. Used by the explicit refresh action on the rates widget.
func (c *Cached) Refresh(base core.CurrencyCode) {
	c.mu.Lock()
	delete(c.entries, base)
	c.mu.Unlock()
}

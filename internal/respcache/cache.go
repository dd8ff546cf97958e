package respcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"curator/internal/logging"
	"curator/internal/media"
)

// Fetcher produces the raw payload for a cache miss.
type Fetcher func(ctx context.Context) ([]byte, error)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Collapsed uint64
	Entries   int
}

// Cache is a bounded response cache shared by all provider adapters. Entries
// past their TTL are treated as absent and refetched on next access.
type Cache struct {
	logger *slog.Logger
	flight singleflight.Group
	now    func() time.Time

	mu        sync.Mutex
	entries   *lru.Cache[string, entry]
	hits      uint64
	misses    uint64
	collapsed uint64
}

// Key builds the canonical cache key for a provider request. Distinct request
// shapes against the same identifier cache independently.
func Key(source media.Source, identifier, shape string) string {
	return string(source) + "|" + strings.TrimSpace(identifier) + "|" + shape
}

// New constructs a cache holding at most maxEntries payloads.
func New(maxEntries int, logger *slog.Logger) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, errors.New("cache capacity must be positive")
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{
		logger:  logging.NewComponentLogger(logger, "respcache"),
		now:     time.Now,
		entries: entries,
	}, nil
}

// GetOrFetch returns the cached payload for key if present and fresh,
// otherwise invokes fetch and stores the result for ttl. Concurrent callers
// for the same key share one in-flight fetch; a caller whose context expires
// while waiting gets its context error without aborting the flight.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) ([]byte, error) {
	if fetch == nil {
		return nil, errors.New("fetcher is nil")
	}

	if payload, ok := c.lookup(key); ok {
		return payload, nil
	}

	// The flight outlives any single waiter so late joiners still get the
	// result after the first caller gives up.
	flightCtx := context.WithoutCancel(ctx)
	results := c.flight.DoChan(key, func() (any, error) {
		payload, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, payload, ttl)
		return payload, nil
	})

	select {
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		if result.Shared {
			c.mu.Lock()
			c.collapsed++
			c.mu.Unlock()
		}
		return result.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lookup returns the fresh payload for key without fetching.
func (c *Cache) Lookup(key string) ([]byte, bool) {
	return c.lookup(key)
}

// Invalidate drops the entry for key if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// InvalidateSource drops every entry cached for the given source.
func (c *Cache) InvalidateSource(source media.Source) {
	prefix := string(source) + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
}

// Stats reports cumulative hit, miss, and collapse counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Collapsed: c.collapsed,
		Entries:   c.entries.Len(),
	}
}

func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, found := c.entries.Get(key)
	if !found {
		c.misses++
		return nil, false
	}
	if c.now().After(cached.expiresAt) {
		c.entries.Remove(key)
		c.misses++
		return nil, false
	}
	c.hits++
	return cached.payload, true
}

func (c *Cache) store(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, entry{payload: payload, expiresAt: c.now().Add(ttl)})
}

package api

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kraal-market/client/internal/platform/observability"
)

// CacheDeps wires the cache's observability hooks. Every field is optional.
type CacheDeps struct {
	Logger  *zap.Logger
	Metrics *observability.CacheMetrics
	Clock   func() time.Time
	// TTL bounds how long an entry may serve hits. Zero keeps entries until
	// a mutation invalidates their tags.
	TTL time.Duration
}

// Cache is a tag-indexed read cache. Reads register the tags they depend on;
// mutations invalidate tags, evicting every entry that registered them.
// Concurrent fetches for the same key collapse into a single upstream call.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	byTag   map[Tag]map[string]struct{}
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.CacheMetrics
	now     func() time.Time
	ttl     time.Duration
}

type cacheEntry struct {
	value    any
	tags     []Tag
	storedAt time.Time
}

// NewCache constructs an empty cache.
func NewCache(deps CacheDeps) *Cache {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewCacheMetrics()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		byTag:   make(map[Tag]map[string]struct{}),
		logger:  logger,
		metrics: metrics,
		now:     now,
		ttl:     deps.TTL,
	}
}

// GetOrFetch returns the cached value for key, fetching and storing it under
// the given tags on a miss. Fetch errors are returned without being cached.
func (c *Cache) GetOrFetch(ctx context.Context, key string, tags []Tag, fetch func(context.Context) (any, error)) (any, error) {
	if value, ok := c.lookup(key); ok {
		c.metrics.Hit(ctx, string(primaryTag(tags)))
		return value, nil
	}
	c.metrics.Miss(ctx, string(primaryTag(tags)))

	value, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have completed while this one queued.
		if value, ok := c.lookup(key); ok {
			return value, nil
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, value, tags)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Invalidate evicts every entry registered under any of the given tags and
// returns the number of entries removed.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) int {
	c.mu.Lock()
	removed := 0
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			continue
		}
		for key := range keys {
			if entry, exists := c.entries[key]; exists {
				c.dropLocked(key, entry)
				removed++
			}
		}
		delete(c.byTag, tag)
	}
	c.mu.Unlock()

	if removed > 0 {
		c.metrics.Invalidations(ctx, removed)
		c.logger.Debug("cache invalidated",
			zap.Int("entries", removed),
			zap.Int("tags", len(tags)),
		)
	}
	return removed
}

// Reset drops everything, cached entries and tag index alike.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.byTag = make(map[Tag]map[string]struct{})
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.dropLocked(key, entry)
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) store(key string, value any, tags []Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.entries[key]; exists {
		c.dropLocked(key, old)
	}
	stored := cacheEntry{value: value, tags: tags, storedAt: c.now()}
	c.entries[key] = stored
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *Cache) dropLocked(key string, entry cacheEntry) {
	delete(c.entries, key)
	for _, tag := range entry.tags {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}

func primaryTag(tags []Tag) Tag {
	if len(tags) == 0 {
		return "untagged"
	}
	return tags[0]
}

// Cached adapts GetOrFetch to a concrete type. A stored value of the wrong
// type bypasses the cache and fetches directly.
func Cached[T any](ctx context.Context, c *Cache, key string, tags []Tag, fetch func(context.Context) (T, error)) (T, error) {
	value, err := c.GetOrFetch(ctx, key, tags, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return fetch(ctx)
	}
	return typed, nil
}

func cacheKey(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}
	return endpoint + "?" + query.Encode()
}

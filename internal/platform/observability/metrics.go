package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/kraal-market/client/internal/platform/observability")

// CacheMetrics exposes counters describing the request-cache behaviour. The
// instruments come from the global meter provider and are no-ops unless the
// embedding program installs a metrics pipeline.
type CacheMetrics struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewCacheMetrics constructs the cache counters. Instrument creation failures
// degrade to nil counters rather than surfacing errors to callers.
func NewCacheMetrics() *CacheMetrics {
	m := &CacheMetrics{}
	m.hits, _ = meter.Int64Counter("kraal.client.cache.hits",
		metric.WithDescription("Cached reads served without a network call"))
	m.misses, _ = meter.Int64Counter("kraal.client.cache.misses",
		metric.WithDescription("Reads that required a network fetch"))
	m.invalidations, _ = meter.Int64Counter("kraal.client.cache.invalidations",
		metric.WithDescription("Cache entries marked stale by mutations"))
	return m
}

// Hit records a cache hit for the given tag.
func (m *CacheMetrics) Hit(ctx context.Context, tag string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.tag", tag)))
}

// Miss records a cache miss for the given tag.
func (m *CacheMetrics) Miss(ctx context.Context, tag string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.tag", tag)))
}

// Invalidations records entries marked stale by a mutation.
func (m *CacheMetrics) Invalidations(ctx context.Context, count int) {
	if m == nil || m.invalidations == nil || count <= 0 {
		return
	}
	m.invalidations.Add(ctx, int64(count))
}

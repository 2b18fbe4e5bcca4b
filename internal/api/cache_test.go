package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestCacheServesRepeatReadsWithoutRefetch(t *testing.T) {
	cache := NewCache(CacheDeps{})
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "payload", nil
	}

	for i := 0; i < 3; i++ {
		value, err := Cached(context.Background(), cache, "listings", []Tag{TagListings}, fetch)
		if err != nil {
			t.Fatalf("Cached returned error: %v", err)
		}
		if value != "payload" {
			t.Fatalf("expected payload got %q", value)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch got %d", got)
	}
}

func TestCacheInvalidateEvictsOnlyTaggedEntries(t *testing.T) {
	cache := NewCache(CacheDeps{})
	ctx := context.Background()
	var listingFetches, cartFetches atomic.Int32

	fetchListings := func(ctx context.Context) (string, error) {
		listingFetches.Add(1)
		return "listings", nil
	}
	fetchCart := func(ctx context.Context) (string, error) {
		cartFetches.Add(1)
		return "cart", nil
	}

	if _, err := Cached(ctx, cache, "listings", []Tag{TagListings}, fetchListings); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if _, err := Cached(ctx, cache, "cart", []Tag{TagCart}, fetchCart); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}

	if removed := cache.Invalidate(ctx, TagCart); removed != 1 {
		t.Fatalf("expected one eviction got %d", removed)
	}

	if _, err := Cached(ctx, cache, "listings", []Tag{TagListings}, fetchListings); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if _, err := Cached(ctx, cache, "cart", []Tag{TagCart}, fetchCart); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}

	if got := listingFetches.Load(); got != 1 {
		t.Fatalf("expected listings untouched by cart invalidation, fetches=%d", got)
	}
	if got := cartFetches.Load(); got != 2 {
		t.Fatalf("expected cart refetched after invalidation, fetches=%d", got)
	}
}

func TestCacheEntityTagTracksOneEntry(t *testing.T) {
	cache := NewCache(CacheDeps{})
	ctx := context.Background()

	for _, id := range []string{"lst-1", "lst-2"} {
		_, err := Cached(ctx, cache, "listings/"+id, []Tag{TagListing(id)}, func(ctx context.Context) (string, error) {
			return "detail-" + id, nil
		})
		if err != nil {
			t.Fatalf("Cached returned error: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries got %d", cache.Len())
	}

	if removed := cache.Invalidate(ctx, TagListing("lst-1")); removed != 1 {
		t.Fatalf("expected one eviction got %d", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 surviving entry got %d", cache.Len())
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	cache := NewCache(CacheDeps{})
	ctx := context.Background()
	var fetches atomic.Int32
	boom := errors.New("upstream down")

	fetch := func(ctx context.Context) (string, error) {
		if fetches.Add(1) == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	if _, err := Cached(ctx, cache, "orders", []Tag{TagOrders}, fetch); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error got %v", err)
	}
	value, err := Cached(ctx, cache, "orders", []Tag{TagOrders}, fetch)
	if err != nil {
		t.Fatalf("expected second fetch to succeed, got %v", err)
	}
	if value != "recovered" {
		t.Fatalf("expected recovered got %q", value)
	}
}

func TestCacheCollapsesConcurrentFetches(t *testing.T) {
	defer goleak.VerifyNone(t)

	cache := NewCache(CacheDeps{})
	ctx := context.Background()
	var fetches atomic.Int32

	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "shared", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Cached(ctx, cache, "listings", []Tag{TagListings}, fetch)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d returned error: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Fatalf("worker %d got %q", i, results[i])
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected concurrent reads to share one fetch got %d", got)
	}
}

func TestCacheTTLExpiresEntries(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewCache(CacheDeps{
		Clock: func() time.Time { return now },
		TTL:   time.Minute,
	})
	ctx := context.Background()
	var fetches atomic.Int32

	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "page", nil
	}

	if _, err := Cached(ctx, cache, "listings", []Tag{TagListings}, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if _, err := Cached(ctx, cache, "listings", []Tag{TagListings}, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected hit within TTL got %d fetches", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := Cached(ctx, cache, "listings", []Tag{TagListings}, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected refetch after TTL got %d fetches", got)
	}
}

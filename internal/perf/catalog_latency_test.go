package perf

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
)

const upstreamProducts = `[
  {"id":"1","name":"Laptop Pro","price":"1299.00","stockQuantity":4,"category":{"id":"10","name":"Laptops"}},
  {"id":"2","name":"Phone X","price":799,"stock":9,"categoryId":"11"},
  {"id":"3","name":"Earbuds","price":"59.90","quantity":0,"category":"Audio"}
]`

const upstreamCategories = `[
  {"id":"10","name":"Laptops","slug":"laptops","productCount":1},
  {"id":"11","name":"Phones","slug":"phones","productCount":1},
  {"id":"12","name":"Audio","slug":"audio","productCount":1}
]`

// slowSource simulates an upstream round trip of delay per list call.
type slowSource struct {
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *slowSource) ListProducts(ctx context.Context, _ catalog.ListFilter) ([]catalog.RawProduct, error) {
	s.wait(ctx)
	var out []catalog.RawProduct
	err := json.Unmarshal([]byte(upstreamProducts), &out)
	return out, err
}

func (s *slowSource) ListCategories(ctx context.Context) ([]catalog.RawCategory, error) {
	s.wait(ctx)
	var out []catalog.RawCategory
	err := json.Unmarshal([]byte(upstreamCategories), &out)
	return out, err
}

func (s *slowSource) wait(ctx context.Context) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
}

func (s *slowSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCatalogLatencyTargets(t *testing.T) {
	reg := prometheus.NewRegistry()
	source := &slowSource{delay: 40 * time.Millisecond}
	store := catalog.NewStore(catalog.StoreConfig{
		Source:  source,
		TTL:     time.Minute,
		Metrics: catalog.NewMetrics(reg),
	})
	defer store.Drain()

	ctx := context.Background()
	start := time.Now()
	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("cold load: %v", err)
	}
	cold := time.Since(start)
	if snap.Fallback || len(snap.Products) != 3 {
		t.Fatalf("expected upstream catalog, got fallback=%v products=%d", snap.Fallback, len(snap.Products))
	}

	cached := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		if _, err := store.Load(ctx); err != nil {
			t.Fatalf("cached load: %v", err)
		}
		cached = append(cached, time.Since(start))
	}

	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{name: "cold", samples: []time.Duration{cold}, threshold: 2 * time.Second},
		{name: "cached", samples: cached, threshold: 5 * time.Millisecond},
	}
	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}

	if calls := source.Calls(); calls != 2 {
		t.Fatalf("expected one products and one categories call, got %d", calls)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if miss := metricValue(t, families, "storefront_catalog_loads_total", map[string]string{"outcome": "miss"}); miss != 1 {
		t.Fatalf("expected a single miss, got %f", miss)
	}
	if hits := metricValue(t, families, "storefront_catalog_loads_total", map[string]string{"outcome": "hit"}); hits != 200 {
		t.Fatalf("expected 200 hits, got %f", hits)
	}
	if products := metricValue(t, families, "storefront_catalog_products", nil); products != 3 {
		t.Fatalf("expected product gauge 3, got %f", products)
	}
}

func TestCatalogConcurrentColdLoadsShareOneFetch(t *testing.T) {
	source := &slowSource{delay: 60 * time.Millisecond}
	store := catalog.NewStore(catalog.StoreConfig{Source: source, TTL: time.Minute})
	defer store.Drain()

	var wg sync.WaitGroup
	samples := make([]time.Duration, 50)
	for i := range samples {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			if _, err := store.Load(context.Background()); err != nil {
				t.Errorf("load %d: %v", i, err)
			}
			samples[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	if calls := source.Calls(); calls != 2 {
		t.Fatalf("expected a single shared fetch (2 list calls), got %d", calls)
	}
	if p95 := percentile95(samples); p95 > time.Second {
		t.Fatalf("concurrent cold load p95=%s above budget", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

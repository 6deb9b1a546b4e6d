package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the catalog cache.
type Metrics struct {
	loads     *prometheus.CounterVec
	fetches   *prometheus.CounterVec
	fetchTime prometheus.Histogram
	unmatched *prometheus.CounterVec
	products  prometheus.Gauge
}

// NewMetrics registers catalog collectors against registerer. A nil
// registerer yields unregistered collectors, which suits tests.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_loads_total",
			Help: "Catalog load calls partitioned by outcome (hit, stale, miss).",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_fetches_total",
			Help: "Upstream catalog fetches partitioned by result (ok, fallback, kept_stale).",
		}, []string{"result"}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_catalog_fetch_duration_seconds",
			Help:    "Duration of upstream catalog fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_accounting_unmatched_total",
			Help: "Category count adjustments skipped because no category matched.",
		}, []string{"op"}),
		products: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_catalog_products",
			Help: "Products held by the current catalog snapshot.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(m.loads, m.fetches, m.fetchTime, m.unmatched, m.products)
	}
	return m
}

func (m *Metrics) load(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) fetched(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchTime.Observe(took.Seconds())
}

func (m *Metrics) published(s *Snapshot) {
	if m == nil || s == nil {
		return
	}
	m.products.Set(float64(len(s.Products)))
}

// ObserveUnmatched wraps next so skipped adjustments are also counted.
func (m *Metrics) ObserveUnmatched(next UnmatchedFunc) UnmatchedFunc {
	return func(u Unmatched) {
		if m != nil {
			m.unmatched.WithLabelValues(u.Op).Inc()
		}
		if next != nil {
			next(u)
		}
	}
}

package perf

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-storefront/internal/jobs"
	"github.com/odyssey-erp/odyssey-storefront/jobs"
)

func TestCatalogJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	refresh := jobs.NewCatalogRefreshJob(catalog.NewInvalidator(client, nil), nil, metrics)
	for i := 0; i < 60; i++ {
		task, err := jobs.NewCatalogRefreshTask(jobs.CatalogRefreshPayload{Reason: "perf"})
		if err != nil {
			t.Fatalf("build refresh task: %v", err)
		}
		if err := refresh.Handle(ctx, task); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	// Redis going away must surface as failures, not hangs.
	mr.Close()
	for i := 0; i < 3; i++ {
		task, _ := jobs.NewCatalogRefreshTask(jobs.CatalogRefreshPayload{Reason: "perf"})
		if err := refresh.Handle(ctx, task); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	audit := jobs.NewCatalogAuditJob(&slowSource{delay: 25 * time.Millisecond}, 0, nil, metrics)
	for i := 0; i < 10; i++ {
		if _, err := audit.Run(ctx, jobs.CatalogAuditPayload{}); err != nil {
			t.Fatalf("audit %d: %v", i, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "storefront_jobs_total", map[string]string{"job": jobs.TaskCatalogRefresh, "status": "success"})
	failure := metricValue(t, families, "storefront_jobs_total", map[string]string{"job": jobs.TaskCatalogRefresh, "status": "failure"})
	if success != 60 || failure != 3 {
		t.Fatalf("unexpected refresh counts: success=%f failure=%f", success, failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("refresh success ratio too low: %f", ratio)
	}
	if failures := metricValue(t, families, "storefront_jobs_failures_total", map[string]string{"job": jobs.TaskCatalogRefresh}); failures != 3 {
		t.Fatalf("expected 3 recorded failures, got %f", failures)
	}

	if mean := histogramMean(t, families, "storefront_job_duration_seconds", map[string]string{"job": jobs.TaskCatalogRefresh}); mean > 0.5 {
		t.Fatalf("refresh duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "storefront_job_duration_seconds", map[string]string{"job": jobs.TaskCatalogAudit}); mean > 2.0 {
		t.Fatalf("audit duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				switch fam.GetType() {
				case dto.MetricType_COUNTER:
					return metric.GetCounter().GetValue()
				case dto.MetricType_GAUGE:
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok && lp.GetValue() != val {
			return false
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

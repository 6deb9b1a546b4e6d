package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-storefront/internal/jobs"
)

// AuditReport summarises one audit run.
type AuditReport struct {
	Products   int             `json:"products"`
	Categories int             `json:"categories"`
	Drift      []catalog.Drift `json:"drift"`
	Took       time.Duration   `json:"took"`
}

// CatalogAuditJob recounts products per category against the counts the
// upstream reports and records every mismatch.
type CatalogAuditJob struct {
	Source     catalog.Source
	Normalizer *catalog.Normalizer
	FetchLimit int
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewCatalogAuditJob wires dependencies for the audit handler.
func NewCatalogAuditJob(source catalog.Source, fetchLimit int, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogAuditJob {
	return &CatalogAuditJob{
		Source:     source,
		Normalizer: catalog.NewNormalizer(nil),
		FetchLimit: fetchLimit,
		Logger:     logger,
		Metrics:    metrics,
		clock:      time.Now,
	}
}

// Handle processes catalog audit tasks.
func (j *CatalogAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("catalog audit: handler not configured")
	}
	var payload CatalogAuditPayload
	if err := decodePayload(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run performs one audit.
func (j *CatalogAuditJob) Run(ctx context.Context, payload CatalogAuditPayload) (report AuditReport, err error) {
	tracker := metricsOrDefault(j.Metrics).Track(TaskCatalogAudit)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskCatalogAudit)
	start := j.now()
	limit := payload.FetchLimit
	if limit <= 0 {
		limit = j.FetchLimit
	}
	if limit <= 0 {
		limit = catalog.DefaultFetchLimit
	}

	var (
		rawProducts   []catalog.RawProduct
		rawCategories []catalog.RawCategory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawCategories, err = j.Source.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rawProducts, err = j.Source.ListProducts(gctx, catalog.ListFilter{Limit: limit})
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("fetch catalog for audit", slog.Any("error", err))
		return report, fmt.Errorf("catalog audit: fetch: %w", err)
	}

	normalizer := j.Normalizer
	if normalizer == nil {
		normalizer = catalog.NewNormalizer(nil)
	}
	categories := normalizer.NormalizeCategories(rawCategories)
	products := normalizer.NormalizeAll(rawProducts, categories)

	report = AuditReport{
		Products:   len(products),
		Categories: len(categories),
		Drift:      catalog.Recount(products, categories),
		Took:       j.now().Sub(start),
	}
	for _, d := range report.Drift {
		metricsOrDefault(j.Metrics).AddDrift(d.Name, d.Actual-d.Recorded)
		logger.Warn("category count drift",
			slog.String("category_id", d.CategoryID),
			slog.String("category", d.Name),
			slog.Int("recorded", d.Recorded),
			slog.Int("actual", d.Actual))
	}
	logger.Info("catalog audit completed",
		slog.Int("products", report.Products),
		slog.Int("categories", report.Categories),
		slog.Int("drifted", len(report.Drift)),
		slog.Duration("duration", report.Took))
	return report, nil
}

func (j *CatalogAuditJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

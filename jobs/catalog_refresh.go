package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-storefront/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CatalogRefreshJob bumps the shared catalog version. API replicas listening
// for bumps refresh their cache.
type CatalogRefreshJob struct {
	Bumper  catalog.Bumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob wires dependencies for the refresh handler.
func NewCatalogRefreshJob(bumper catalog.Bumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Bumper: bumper, Logger: logger, Metrics: metrics}
}

// Handle processes catalog refresh tasks.
func (j *CatalogRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Bumper == nil {
		return errors.New("catalog refresh: handler not configured")
	}
	var payload CatalogRefreshPayload
	if err := decodePayload(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskCatalogRefresh)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskCatalogRefresh)
	version, err := j.Bumper.Bump(ctx)
	if err != nil {
		logger.Error("bump catalog version", slog.Any("error", err))
		return err
	}
	logger.Info("catalog version bumped", slog.Int64("version", version), slog.String("reason", payload.Reason))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-storefront/internal/app"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/gateway"
	jobmetrics "github.com/odyssey-erp/odyssey-storefront/internal/jobs"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	opts := cfg.GatewayOptions()
	opts.Logger = logger
	remote, closeRemote, err := gateway.Open(ctx, opts)
	if err != nil {
		logger.Error("open gateway", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeRemote()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	refreshJob := jobs.NewCatalogRefreshJob(catalog.NewInvalidator(redisClient, logger), logger, metrics)
	auditJob := jobs.NewCatalogAuditJob(remote, cfg.CatalogFetchLimit, logger, metrics)

	refreshTask, err := jobs.NewCatalogRefreshTask(jobs.CatalogRefreshPayload{Reason: "schedule"})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	auditTask, err := jobs.NewCatalogAuditTask(jobs.CatalogAuditPayload{})
	if err != nil {
		logger.Error("build audit task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskCatalogAudit, Handler: auditJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CatalogRefreshCron, Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CatalogAuditCron, Task: auditTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("gateway", cfg.GatewayDriver))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

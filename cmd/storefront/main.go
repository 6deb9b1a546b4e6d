package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/app"
	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/gateway"
	"github.com/odyssey-erp/odyssey-storefront/internal/observability"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/broker"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	slog.SetDefault(logger)
	decimal.MarshalJSONWithoutQuotes = true

	opts := cfg.GatewayOptions()
	opts.Logger = logger
	remote, closeRemote, err := gateway.Open(ctx, opts)
	if err != nil {
		logger.Error("open gateway", slog.String("driver", cfg.GatewayDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeRemote()

	var (
		redisClient *redis.Client
		invalidator *catalog.Invalidator
		bumper      catalog.Bumper
	)
	redisClient, err = cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, cross-replica invalidation disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		invalidator = catalog.NewInvalidator(redisClient, logger)
		bumper = invalidator
	}

	var events catalog.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := broker.NewProducer(broker.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		if err != nil {
			logger.Error("init kafka producer", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		events = catalog.NewBrokerEvents(producer)
	}

	metrics := observability.NewMetrics()
	catalogMetrics := catalog.NewMetrics(metrics.Registerer())

	fallback, err := catalog.LoadFallback()
	if err != nil {
		logger.Error("load fallback catalog", slog.Any("error", err))
		os.Exit(1)
	}
	normalizer := catalog.NewNormalizer(catalog.LogDiagnostics(logger))
	accounting := catalog.NewAccounting(catalogMetrics.ObserveUnmatched(func(u catalog.Unmatched) {
		logger.Debug("category count skipped", slog.String("op", u.Op), slog.String("product_id", u.ProductID))
	}))
	store := catalog.NewStore(catalog.StoreConfig{
		Source:       remote,
		Normalizer:   normalizer,
		Accounting:   accounting,
		Fallback:     fallback,
		TTL:          cfg.CatalogTTL,
		FetchLimit:   cfg.CatalogFetchLimit,
		FetchTimeout: cfg.GatewayTimeout,
		Logger:       logger,
		Metrics:      catalogMetrics,
	})
	defer store.Drain()
	service := catalog.NewService(catalog.ServiceConfig{
		Gateway:    remote,
		Store:      store,
		Normalizer: normalizer,
		Events:     events,
		Bumper:     bumper,
		Logger:     logger,
	})

	if err := invalidator.Listen(ctx, func(ctx context.Context, version int64) {
		if _, err := store.Refresh(ctx); err != nil {
			logger.Warn("refresh after bump", slog.Int64("version", version), slog.Any("error", err))
		}
	}); err != nil {
		logger.Warn("listen for catalog bumps", slog.Any("error", err))
	}
	go func() {
		if _, err := store.Load(ctx); err != nil {
			logger.Warn("initial catalog load", slog.Any("error", err))
		}
	}()

	book := cart.NewBook(remote)
	paymentMethods := cart.PaymentMethods(cart.PaymentConfig{
		BankID:        cfg.BankID,
		BankName:      cfg.BankName,
		BankCode:      cfg.BankCode,
		AccountNumber: cfg.BankAccountNumber,
		AccountName:   cfg.BankAccountName,
	})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpt)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalog.NewHandler(logger, store, service),
		CartHandler:    cart.NewHandler(logger, book, store, paymentMethods),
		OrdersHandler:  cart.NewAdminHandler(logger, remote),
		JobHandler:     jobs.NewHandler(inspector, jobClient, logger),
		Metrics:        metrics,
		RequestLog:     !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("gateway", cfg.GatewayDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

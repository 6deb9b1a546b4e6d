package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/db"
)

// Drivers accepted by Open.
const (
	DriverHTTP     = "http"
	DriverPostgres = "postgres"
)

// Remote is everything the storefront consumes from the upstream.
type Remote interface {
	catalog.Gateway
	cart.OrderGateway
	cart.OrderAdmin
}

// OpenConfig selects and configures a gateway implementation.
type OpenConfig struct {
	Driver  string
	BaseURL string
	Timeout time.Duration
	DSN     string
	Migrate bool
	Logger  *slog.Logger
}

// Open builds the configured gateway. The returned func releases its
// resources.
func Open(ctx context.Context, cfg OpenConfig) (Remote, func(), error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverHTTP, "":
		client, err := NewClient(ClientConfig{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("gateway: open postgres: %w", err)
		}
		store := NewStore(pool, logger)
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("gateway: unknown driver %q", cfg.Driver)
	}
}

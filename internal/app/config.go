package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-storefront/internal/gateway"
)

// Gateway drivers accepted by GATEWAY_DRIVER.
const (
	GatewayHTTP     = gateway.DriverHTTP
	GatewayPostgres = gateway.DriverPostgres
)

// Config holds runtime configuration for the storefront processes.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	RateLimitPerMin   int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	GatewayDriver  string        `envconfig:"GATEWAY_DRIVER" default:"http"`
	GatewayBaseURL string        `envconfig:"GATEWAY_BASE_URL" default:"http://localhost:8080/api"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	PGDSN          string        `envconfig:"PG_DSN"`
	PGMigrate      bool          `envconfig:"PG_MIGRATE" default:"false"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	CatalogTTL        time.Duration `envconfig:"CATALOG_TTL" default:"5m"`
	CatalogFetchLimit int           `envconfig:"CATALOG_FETCH_LIMIT" default:"100"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"storefront.catalog.changes"`

	BankID            string `envconfig:"BANK_ID" default:"bank"`
	BankName          string `envconfig:"BANK_NAME"`
	BankCode          string `envconfig:"BANK_CODE"`
	BankAccountNumber string `envconfig:"BANK_ACCOUNT_NUMBER"`
	BankAccountName   string `envconfig:"BANK_ACCOUNT_NAME"`

	CatalogRefreshCron string `envconfig:"CATALOG_REFRESH_CRON" default:"*/5 * * * *"`
	CatalogAuditCron   string `envconfig:"CATALOG_AUDIT_CRON" default:"0 * * * *"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver specific requirements.
func (c *Config) Validate() error {
	c.GatewayDriver = strings.ToLower(strings.TrimSpace(c.GatewayDriver))
	switch c.GatewayDriver {
	case GatewayHTTP:
		if strings.TrimSpace(c.GatewayBaseURL) == "" {
			return errors.New("gateway base url must be provided for the http driver")
		}
	case GatewayPostgres:
		if strings.TrimSpace(c.PGDSN) == "" {
			return errors.New("pg dsn must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown gateway driver %q", c.GatewayDriver)
	}
	if c.CatalogTTL <= 0 {
		return errors.New("catalog ttl must be positive")
	}
	return nil
}

// GatewayOptions maps the configuration onto gateway.OpenConfig.
func (c *Config) GatewayOptions() gateway.OpenConfig {
	return gateway.OpenConfig{
		Driver:  c.GatewayDriver,
		BaseURL: c.GatewayBaseURL,
		Timeout: c.GatewayTimeout,
		DSN:     c.PGDSN,
		Migrate: c.PGMigrate,
	}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

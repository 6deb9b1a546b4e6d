package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/observability"
	"github.com/odyssey-erp/odyssey-storefront/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	CatalogHandler *catalog.Handler
	CartHandler    *cart.Handler
	OrdersHandler  *cart.AdminHandler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	RequestLog     bool
}

// NewRouter constructs the chi.Router with storefront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.RequestLog {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.CartHandler != nil {
			r.Route("/carts", params.CartHandler.MountRoutes)
			r.Get("/payment-methods", params.CartHandler.PaymentMethodsHandler)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountAdminRoutes(r)
			}
			if params.OrdersHandler != nil {
				params.OrdersHandler.MountRoutes(r)
			}
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

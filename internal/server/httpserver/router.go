package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/sesspool-go/internal/server/httpserver/handler"
	"github.com/yndnr/sesspool-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Pool    handler.PoolAPI
	Catalog handler.CatalogAPI // nil disables /v1 routes
	Metrics *metric.Registry
	Logger  *slog.Logger
	Version string

	// APIKey protects /admin, /v1 and /metrics. Empty disables auth.
	APIKey string

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit int

	// MetricsAuthRequired puts /metrics behind APIKey.
	MetricsAuthRequired bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 50,
	}
}

// NewRouter builds the HTTP routes and their middleware.
//
// Order: RequestID -> Recover -> Audit -> RateLimit -> APIKey -> handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := handler.New(cfg.Pool, cfg.Catalog, cfg.Version, log)

	base := []Middleware{RequestID(), Recover(log), Audit(log, cfg.Metrics)}
	open := Chain(h, base...)
	protected := Chain(h, append(base, RateLimit(cfg.RateLimit), APIKey(cfg.APIKey))...)

	mux := http.NewServeMux()

	mux.Handle("GET /health", open)
	mux.Handle("GET /ready", open)

	metricsMW := base
	if cfg.MetricsAuthRequired {
		metricsMW = append(append([]Middleware{}, base...), APIKey(cfg.APIKey))
	}
	mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), metricsMW...))

	mux.Handle("GET /admin/v1/pool", protected)
	mux.Handle("GET /admin/v1/pool/{origin}", protected)
	mux.Handle("POST /admin/v1/pool/{origin}/refill", protected)
	mux.Handle("POST /admin/v1/pool/{origin}/invalidate", protected)

	if cfg.Catalog != nil {
		mux.Handle("GET /v1/catalog/{origin}/search", protected)
		mux.Handle("GET /v1/items/{origin}/{id}", protected)
	}

	return mux
}

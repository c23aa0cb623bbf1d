package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/core/service"
	"github.com/yndnr/sesspool-go/internal/telemetry/logger"
)

// PoolAPI is the pool surface the handlers use. *service.Pool satisfies it.
type PoolAPI interface {
	Config() service.PoolConfig
	Stats(origin string) service.PoolStats
	Snapshot() map[string][]domain.Credential
	Replenish(ctx context.Context, origin string, count int) service.ReplenishResult
	Revoke(ctx context.Context, origin, token string) (bool, []domain.Credential, error)
}

// CatalogAPI is the consumer surface. *service.CatalogService satisfies it.
type CatalogAPI interface {
	Search(ctx context.Context, origin, query string, page int) (json.RawMessage, error)
	Item(ctx context.Context, origin, id string) (json.RawMessage, error)
}

// Handler serves the sesspool HTTP API.
type Handler struct {
	pool    PoolAPI
	catalog CatalogAPI
	version string
	logger  *slog.Logger
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a Handler. catalog may be nil to disable the /v1 routes.
func New(pool PoolAPI, catalog CatalogAPI, version string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		pool:    pool,
		catalog: catalog,
		version: version,
		logger:  log,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/pool", h.handleListPools)
	h.mux.HandleFunc("GET /admin/v1/pool/{origin}", h.handleShowPool)
	h.mux.HandleFunc("POST /admin/v1/pool/{origin}/refill", h.handleRefill)
	h.mux.HandleFunc("POST /admin/v1/pool/{origin}/invalidate", h.handleInvalidate)

	if h.catalog != nil {
		h.mux.HandleFunc("GET /v1/catalog/{origin}/search", h.handleSearch)
		h.mux.HandleFunc("GET /v1/items/{origin}/{id}", h.handleItem)
	}
}

// writeJSON writes data in the success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(getRequestID(r), data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(getRequestID(r), code, message))
}

func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := domain.CodeOf(err); code != "" {
		h.writeError(w, r, domain.StatusOf(err), code, err.Error())
		return
	}
	if r.Context().Err() != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "SP-SYS-5030", "request cancelled")
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "SP-SYS-5000", "internal server error")
}


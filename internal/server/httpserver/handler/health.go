package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
		"time":    h.now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. The service is ready once every
// configured origin holds at least one valid credential.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	var empty []string
	for _, key := range h.pool.Config().Origins.Keys() {
		if h.pool.Stats(key).Valid == 0 {
			empty = append(empty, key)
		}
	}
	if len(empty) > 0 {
		w.Header().Set("Retry-After", "5")
		h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status":        "warming",
			"empty_origins": empty,
		})
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

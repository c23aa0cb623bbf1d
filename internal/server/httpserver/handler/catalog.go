package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// handleSearch handles GET /v1/catalog/{origin}/search?q=&page=.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.origin(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "q is required")
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "page must be a positive integer")
			return
		}
		page = n
	}

	body, err := h.catalog.Search(r.Context(), origin.Key, query, page)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, body)
}

// handleItem handles GET /v1/items/{origin}/{id}.
func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.origin(w, r)
	if !ok {
		return
	}

	body, err := h.catalog.Item(r.Context(), origin.Key, r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, json.RawMessage(body))
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/core/service"
)

// handleListPools handles GET /admin/v1/pool.
func (h *Handler) handleListPools(w http.ResponseWriter, r *http.Request) {
	keys := h.pool.Config().Origins.Keys()
	resp := PoolListResponse{Origins: make([]service.PoolStats, 0, len(keys))}
	for _, key := range keys {
		resp.Origins = append(resp.Origins, h.pool.Stats(key))
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleShowPool handles GET /admin/v1/pool/{origin}.
func (h *Handler) handleShowPool(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.origin(w, r)
	if !ok {
		return
	}

	now := h.now()
	creds := h.pool.Snapshot()[origin.Key]
	view := PoolView{
		PoolStats:   h.pool.Stats(origin.Key),
		BaseURL:     origin.BaseURL,
		Credentials: make([]CredentialView, 0, len(creds)),
	}
	for _, c := range creds {
		view.Credentials = append(view.Credentials, newCredentialView(c, now))
	}
	h.writeJSON(w, r, http.StatusOK, view)
}

// handleRefill handles POST /admin/v1/pool/{origin}/refill. The run
// completes before the response is written; a run already in flight
// for any origin yields 409 with the skipped result.
func (h *Handler) handleRefill(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.origin(w, r)
	if !ok {
		return
	}

	var req RefillRequest
	if err := decodeOptional(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "invalid request body")
		return
	}
	if req.Count < 0 {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "count must not be negative")
		return
	}

	stats := h.pool.Stats(origin.Key)
	if req.Count > stats.Capacity {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code,
			fmt.Sprintf("count must not exceed the pool capacity %d", stats.Capacity))
		return
	}
	count := req.Count
	if count == 0 {
		count = max(stats.Capacity-stats.Valid, 1)
	}

	res := h.pool.Replenish(r.Context(), origin.Key, count)
	if res.Skipped {
		h.writeJSON(w, r, http.StatusConflict, res)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

// handleInvalidate handles POST /admin/v1/pool/{origin}/invalidate.
func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.origin(w, r)
	if !ok {
		return
	}

	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "invalid request body")
		return
	}
	if (req.Token == "") == (req.Fingerprint == "") {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "exactly one of token and fp is required")
		return
	}

	token := req.Token
	if token == "" {
		token = h.tokenByFingerprint(origin.Key, req.Fingerprint)
	}

	removed, valid, err := h.pool.Revoke(r.Context(), origin.Key, token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, InvalidateResponse{Removed: removed, Valid: len(valid)})
}

// origin resolves the {origin} path value, writing 404 when unknown.
func (h *Handler) origin(w http.ResponseWriter, r *http.Request) (domain.Origin, bool) {
	key := r.PathValue("origin")
	o, ok := h.pool.Config().Origins.ByKey(key)
	if !ok {
		err := domain.ErrUnknownOrigin.About(key)
		h.writeError(w, r, domain.StatusOf(err), err.Code, err.Error())
	}
	return o, ok
}

func (h *Handler) tokenByFingerprint(origin, fp string) string {
	for _, c := range h.pool.Snapshot()[origin] {
		if c.Fingerprint() == fp {
			return c.Token
		}
	}
	return ""
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

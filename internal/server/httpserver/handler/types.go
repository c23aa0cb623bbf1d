package handler

import (
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/core/service"
)

// Response is the standard API response envelope. /metrics is the only
// endpoint that does not use it.
type Response struct {
	RequestID string     `json:"request_id"`
	Timestamp int64      `json:"timestamp"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Error:     &ErrorBody{Code: code, Message: message},
	}
}

// CredentialView is a credential as shown by the admin API.
type CredentialView struct {
	Fingerprint string `json:"fp"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
	ExpiresIn   string `json:"expires_in"`
	Valid       bool   `json:"valid"`
}

func newCredentialView(c domain.Credential, now time.Time) CredentialView {
	return CredentialView{
		Fingerprint: c.Fingerprint(),
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		ExpiresIn:   c.Remaining(now).Truncate(time.Second).String(),
		Valid:       c.IsValidAt(now),
	}
}

// PoolView is GET /admin/v1/pool/{origin}.
type PoolView struct {
	service.PoolStats
	BaseURL     string           `json:"base_url"`
	Credentials []CredentialView `json:"credentials"`
}

// PoolListResponse is GET /admin/v1/pool.
type PoolListResponse struct {
	Origins []service.PoolStats `json:"origins"`
}

// RefillRequest is the optional body of POST /admin/v1/pool/{origin}/refill.
type RefillRequest struct {
	// Count defaults to the free capacity, at least one.
	Count int `json:"count,omitempty"`
}

// InvalidateRequest is the body of POST /admin/v1/pool/{origin}/invalidate.
// Exactly one of Token and Fingerprint is set.
type InvalidateRequest struct {
	Token       string `json:"token,omitempty"`
	Fingerprint string `json:"fp,omitempty"`
}

// InvalidateResponse reports the result of an invalidation.
type InvalidateResponse struct {
	Removed bool `json:"removed"`
	Valid   int  `json:"valid"`
}

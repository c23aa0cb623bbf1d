package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a failure the admin API can report. Code has the form
// SP-<AREA>-<NNNN>; Status is the HTTP status the admin API answers with.
// Two Errors match under errors.Is when their codes are equal, so the
// sentinels below can be compared against refined copies.
type Error struct {
	Code    string
	Status  int
	Message string
	Subject string // origin, item id or operation the error is about
	Err     error
}

func newError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Subject)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// About returns a copy naming what the error is about.
func (e *Error) About(subject string) *Error {
	c := *e
	c.Subject = subject
	return &c
}

// Aboutf is About with a format string.
func (e *Error) Aboutf(format string, args ...any) *Error {
	return e.About(fmt.Sprintf(format, args...))
}

// Wrap returns a copy with err as the cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusOf returns the HTTP status for err. Errors without a code are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Upstream failures. Transport errors may be retried by the caller; the
// pool never retries a fetch itself.
var (
	ErrTransport        = newError("SP-NET-5020", http.StatusBadGateway, "transport error")
	ErrUpstreamServer   = newError("SP-NET-5021", http.StatusBadGateway, "origin server error")
	ErrUnexpectedStatus = newError("SP-NET-4000", http.StatusBadGateway, "unexpected response status")
)

// Credential rejections.
var (
	// ErrAuthRejected is a 401 from the origin.
	ErrAuthRejected = newError("SP-AUTH-4010", http.StatusBadGateway, "credential rejected by origin")

	// ErrApplicationInvalidToken is a 2xx whose body carries the origin's
	// "invalid authentication token" code. Only this one invalidates the
	// credential that was used.
	ErrApplicationInvalidToken = newError("SP-AUTH-4011", http.StatusBadGateway, "invalid authentication token")

	// ErrEdgeBlocked is a 403 from the origin's edge protection.
	ErrEdgeBlocked = newError("SP-AUTH-4030", http.StatusBadGateway, "blocked by edge protection")
)

var (
	// ErrPoolExhausted means no valid credential was available even after
	// a forced replenishment.
	ErrPoolExhausted = newError("SP-POOL-5030", http.StatusServiceUnavailable, "credential pool exhausted")

	// ErrTokenNotFound means the landing response set no session cookie.
	ErrTokenNotFound = newError("SP-TOKN-4040", http.StatusBadGateway, "session token not found in response")
)

var (
	// ErrCorruptState is healed by the store and never reaches consumers.
	ErrCorruptState = newError("SP-STOR-5001", http.StatusInternalServerError, "corrupt persisted state")
	ErrStorage      = newError("SP-STOR-5000", http.StatusInternalServerError, "storage error")
)

var (
	ErrUnknownOrigin   = newError("SP-ARG-1001", http.StatusNotFound, "unknown origin")
	ErrInvalidArgument = newError("SP-ARG-1002", http.StatusBadRequest, "invalid argument")
)

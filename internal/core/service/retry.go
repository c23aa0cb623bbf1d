package service

import (
	"context"
	"errors"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// DefaultMaxAttempts bounds WithCredential when no limit is given.
const DefaultMaxAttempts = 3

// CredentialSource is the part of Pool used by consumers.
type CredentialSource interface {
	Draw(ctx context.Context, origin string) (domain.Credential, error)
	Invalidate(ctx context.Context, origin, token string) ([]domain.Credential, error)
}

// RejectedError names the token the origin actually rejected. It differs
// from the drawn credential when the transport rotated the token on a 401
// before the application refused the replacement.
type RejectedError struct {
	Token string
	Err   error
}

func (e *RejectedError) Error() string { return e.Err.Error() }

func (e *RejectedError) Unwrap() error { return e.Err }

// WithCredential runs fn with a credential drawn from src, at most
// maxAttempts times. An ErrApplicationInvalidToken result invalidates
// the rejected token before the next draw: the one named by a
// RejectedError, else the drawn one. Any other error just retries.
// Draw failures (including ErrPoolExhausted) end the loop immediately.
// After the last attempt the last error is returned.
func WithCredential[T any](
	ctx context.Context,
	src CredentialSource,
	origin string,
	maxAttempts int,
	fn func(ctx context.Context, cred domain.Credential) (T, error),
) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		cred, err := src.Draw(ctx, origin)
		if err != nil {
			return zero, err
		}

		out, err := fn(ctx, cred)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrApplicationInvalidToken) {
			token := cred.Token
			var rej *RejectedError
			if errors.As(err, &rej) && rej.Token != "" {
				token = rej.Token
			}
			if _, ierr := src.Invalidate(ctx, origin, token); ierr != nil {
				return zero, ierr
			}
		}
	}
	return zero, lastErr
}

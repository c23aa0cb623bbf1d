package domain

import (
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"
)

// Pool defaults.
const (
	// DefaultMaxCapacity bounds the number of credentials kept per origin.
	DefaultMaxCapacity = 20

	// DefaultMinThreshold is the valid-count below which the pool replenishes.
	DefaultMinThreshold = 3

	// DefaultLifetime is the TTL of pooled credentials.
	DefaultLifetime = 10 * time.Minute

	// SingleTokenLifetime is the TTL used in single-token mode.
	SingleTokenLifetime = 24 * time.Hour
)

// Credential is an ephemeral session token issued by an origin.
// It is immutable once created; timestamps are Unix milliseconds.
type Credential struct {
	Token     string `json:"token"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewCredential creates a credential issued at now that lives for lifetime.
func NewCredential(token string, now time.Time, lifetime time.Duration) Credential {
	created := now.UnixMilli()
	return Credential{
		Token:     token,
		CreatedAt: created,
		ExpiresAt: created + lifetime.Milliseconds(),
	}
}

// IsValidAt reports whether the credential is still usable at the given time.
func (c Credential) IsValidAt(now time.Time) bool {
	return now.UnixMilli() < c.ExpiresAt
}

// IsValid reports whether the credential is still usable now.
func (c Credential) IsValid() bool {
	return c.IsValidAt(time.Now())
}

// IsZero reports whether c is the empty credential.
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// Remaining returns the time left before expiry at now (never negative).
func (c Credential) Remaining(now time.Time) time.Duration {
	d := time.Duration(c.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// Fingerprint returns a short stable identifier for the token that is
// safe to log and to expose through the admin API.
func (c Credential) Fingerprint() string {
	return Fingerprint(c.Token)
}

// Fingerprint hashes a raw token into an 8-char hex identifier.
func Fingerprint(token string) string {
	return fmt.Sprintf("%08x", murmur3.Sum32([]byte(token)))
}

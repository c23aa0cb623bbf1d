package logger

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Redacted replaces values logged under secret-looking keys.
const Redacted = "[redacted]"

// Session tokens are JWTs; the base64url header of a JSON object always
// starts with eyJ.
var tokenPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*(?:\.[A-Za-z0-9_-]*){0,2}`)

var secretKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"cookie",
	"credential",
	"authorization",
	"api_key",
	"apikey",
	"encryption_key",
}

// TokenRef names a token by its fingerprint, e.g. "jwt#1a2b3c4d". The
// fingerprint matches the one the admin API reports for the credential.
func TokenRef(token string) string {
	return fmt.Sprintf("jwt#%08x", murmur3.Sum32([]byte(token)))
}

// Scrub replaces every token embedded in s with its TokenRef. Cookie
// headers, URLs and upstream error bodies pass through here.
func Scrub(s string) string {
	if !strings.Contains(s, "eyJ") {
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, TokenRef)
}

// SecretKey reports whether an attribute key names secret material.
func SecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

// scrubAttr is the ReplaceAttr hook. A bare token under a secret key
// still logs as its TokenRef so it can be correlated; any other value
// under a secret key is replaced whole.
func scrubAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if s == "" {
			return a
		}
		if SecretKey(a.Key) && tokenPattern.FindString(s) != s {
			return slog.String(a.Key, Redacted)
		}
		if scrubbed := Scrub(s); scrubbed != s {
			return slog.String(a.Key, scrubbed)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, Scrub(err.Error()))
		}
	}
	return a
}

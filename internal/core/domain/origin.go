package domain

import (
	"net/url"
	"strings"
)

// DefaultCookieName is the cookie carrying the marketplace session token.
const DefaultCookieName = "access_token_web"

// Origin is a regional variant of the target site.
type Origin struct {
	// Key identifies the origin in the pool and in the snapshot (e.g. "co.uk").
	Key string `json:"key" koanf:"key"`

	// BaseURL is the landing URL, e.g. https://www.vinted.co.uk.
	BaseURL string `json:"base_url" koanf:"base_url"`
}

// Host returns the host part of BaseURL, or "" if it cannot be parsed.
func (o Origin) Host() string {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// LandingURL returns the unauthenticated landing endpoint.
func (o Origin) LandingURL() string {
	return strings.TrimSuffix(o.BaseURL, "/")
}

// URL joins path onto BaseURL.
func (o Origin) URL(path string) string {
	return strings.TrimSuffix(o.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Referer returns the Referer header value browsers send for this origin.
func (o Origin) Referer() string {
	return strings.TrimSuffix(o.BaseURL, "/") + "/"
}

// Origins is a set of configured origins addressable by key or host.
type Origins []Origin

// ByKey returns the origin with the given key.
func (list Origins) ByKey(key string) (Origin, bool) {
	for _, o := range list {
		if o.Key == key {
			return o, true
		}
	}
	return Origin{}, false
}

// Resolve finds the origin serving rawURL by host match.
func (list Origins) Resolve(rawURL string) (Origin, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Origin{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, o := range list {
		if h := o.Host(); h != "" && h == host {
			return o, true
		}
	}
	return Origin{}, false
}

// Keys returns the origin keys in configuration order.
func (list Origins) Keys() []string {
	keys := make([]string, 0, len(list))
	for _, o := range list {
		keys = append(keys, o.Key)
	}
	return keys
}

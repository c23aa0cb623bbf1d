package client

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

const chromeVersion = "120.0.0.0"

// DefaultUserAgent is the desktop Chrome user agent sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chromeVersion + " Safari/537.36"

// browserHeaders returns the navigation header set for a page on referer.
func browserHeaders(userAgent, referer string) http.Header {
	brand := `"Not_A Brand";v="8", "Chromium";v="` + chromeVersion + `", "Google Chrome";v="` + chromeVersion + `"`
	h := http.Header{}
	h.Set("sec-ch-ua", brand)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("User-Agent", userAgent)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// clearanceCookie returns a fresh random cf_clearance cookie pair.
func clearanceCookie() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "cf_clearance=" + hex.EncodeToString(b)
}

// disguise fills in browser defaults on req. Headers the caller set win;
// the caller's Cookie header is kept and the clearance cookie prepended.
func (c *Client) disguise(req *http.Request, origin domain.Origin, known bool) {
	referer := refererFor(req.URL)
	if known {
		referer = origin.Referer()
	}

	for k, v := range browserHeaders(c.cfg.UserAgent, referer) {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}

	cookie := c.clearance()
	if existing := req.Header.Get("Cookie"); existing != "" {
		cookie += "; " + existing
	}
	req.Header.Set("Cookie", cookie)
}

func refererFor(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// replaceCookie swaps the value of name in a Cookie header, appending
// the pair when absent.
func replaceCookie(header, name, value string) string {
	var out []string
	found := false
	for _, p := range strings.Split(header, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if k, _, ok := strings.Cut(p, "="); ok && k == name {
			p = name + "=" + value
			found = true
		}
		out = append(out, p)
	}
	if !found {
		out = append(out, name+"="+value)
	}
	return strings.Join(out, "; ")
}

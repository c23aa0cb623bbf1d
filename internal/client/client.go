package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/infra/tlsroots"
	"github.com/yndnr/sesspool-go/internal/telemetry/metric"
)

// Defaults.
const (
	DefaultTimeout      = 100 * time.Second
	DefaultFetchTimeout = 5 * time.Second
	DefaultMaxRedirects = 5
)

// maxReplayBody caps the request body buffered for replay.
const maxReplayBody = 8 << 20

// Credentials is the part of the pool the client needs for 401 rotation.
type Credentials interface {
	Invalidate(ctx context.Context, origin, token string) ([]domain.Credential, error)
	Draw(ctx context.Context, origin string) (domain.Credential, error)
}

// Config configures a Client.
type Config struct {
	// Origins maps request hosts to origin keys for rotation and metrics.
	Origins domain.Origins

	// Timeout bounds one request including redirects. Default: 100s
	Timeout time.Duration

	// FetchTimeout bounds one landing-page token fetch. Default: 5s
	FetchTimeout time.Duration

	// MaxRedirects is the redirect limit. Default: 5
	MaxRedirects int

	// RateLimit is the outbound request rate in requests per second.
	// Zero disables throttling.
	RateLimit float64

	// RateBurst is the limiter burst. Default: 1
	RateBurst int

	// CookieName is the session cookie. Default: access_token_web
	CookieName string

	// CAFile adds a PEM file or directory to the system roots.
	CAFile string

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// Proxy enables the SOCKS5 tunnel when non-nil and enabled.
	Proxy *ProxySettings

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Client issues disguised requests to the origins.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metric.Registry
	cookieRe *regexp.Regexp

	mu    sync.RWMutex
	creds Credentials

	clearance func() string
}

// New builds a client. It fails when the CA bundle or proxy settings
// are unusable.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.CookieName == "" {
		cfg.CookieName = domain.DefaultCookieName
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	roots, err := tlsroots.Load(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	dial, err := dialer(cfg.Proxy, &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	transport := &http.Transport{
		DialContext:     dial,
		DialTLSContext:  browserTLSDialer(dial, roots.CertPool(), 10*time.Second),
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}

	maxRedirects := cfg.MaxRedirects
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger:    cfg.Logger.With("component", "client"),
		metrics:   cfg.Metrics,
		cookieRe:  regexp.MustCompile(regexp.QuoteMeta(cfg.CookieName) + `=([^;]+)`),
		clearance: clearanceCookie,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return c, nil
}

// SetCredentials wires the pool used for 401 rotation. The pool depends
// on the client for token fetches, so it is attached after both exist.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// Do sends req with the browser disguise. Responses below 500 are
// returned as is, 403 included; the caller closes the body. A 401 for a
// request carrying a session token is retried once with a fresh token.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(io.LimitReader(req.Body, maxReplayBody))
		req.Body.Close()
		if err != nil {
			return nil, domain.ErrTransport.About("read request body").Wrap(err)
		}
		body = b
	}

	origin, known := c.cfg.Origins.Resolve(req.URL.String())

	resp, err := c.send(ctx, req, body, origin, known)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return c.rotate(ctx, req, body, origin, known, resp)
	case http.StatusForbidden:
		c.logger.Warn("blocked by edge protection", "host", req.URL.Host, "path", req.URL.Path)
	}
	return resp, nil
}

// rotate handles a 401: the token that was sent is invalidated, a fresh
// one drawn and the request replayed once. Without a token, an origin or
// a pool, or when no credential can be drawn, the original response is
// returned.
func (c *Client) rotate(ctx context.Context, req *http.Request, body []byte, origin domain.Origin, known bool, resp *http.Response) (*http.Response, error) {
	creds := c.credentials()
	m := c.cookieRe.FindStringSubmatch(req.Header.Get("Cookie"))
	if m == nil || !known || creds == nil {
		return resp, nil
	}
	stale := m[1]
	log := c.logger.With("origin", origin.Key, "fp", domain.Fingerprint(stale))
	log.Info("unauthorized, rotating credential")

	if _, err := creds.Invalidate(ctx, origin.Key, stale); err != nil {
		log.Warn("invalidate failed", "error", err)
	}
	fresh, err := creds.Draw(ctx, origin.Key)
	if err != nil {
		log.Warn("no credential for replay", "error", err)
		c.metrics.RecordRotation(origin.Key, "no_credential")
		return resp, nil
	}

	drain(resp)
	replay := req.Clone(ctx)
	replay.Header.Set("Cookie", replaceCookie(req.Header.Get("Cookie"), c.cfg.CookieName, fresh.Token))

	out, err := c.send(ctx, replay, body, origin, known)
	if err != nil {
		c.metrics.RecordRotation(origin.Key, "failed")
		return nil, err
	}
	c.metrics.RecordRotation(origin.Key, "replayed")
	log.Debug("replayed with fresh credential", "status", out.StatusCode, "new_fp", fresh.Fingerprint())
	return out, nil
}

// send performs one attempt. The disguise is applied to a clone so the
// caller's request is never modified.
func (c *Client) send(ctx context.Context, req *http.Request, body []byte, origin domain.Origin, known bool) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.ErrTransport.About("rate limiter").Wrap(err)
		}
	}

	out := req.Clone(ctx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	c.disguise(out, origin, known)

	label := origin.Key
	if !known {
		label = "other"
	}

	resp, err := c.http.Do(out)
	if err != nil {
		c.metrics.RecordUpstream(label, 0)
		return nil, domain.ErrTransport.About(out.Method + " " + out.URL.Host).Wrap(err)
	}
	c.metrics.RecordUpstream(label, resp.StatusCode)

	if resp.StatusCode >= 500 {
		drain(resp)
		return nil, domain.ErrUpstreamServer.Aboutf("%s %s: status %d", out.Method, out.URL.Host, resp.StatusCode)
	}
	return resp, nil
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

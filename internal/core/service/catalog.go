package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// DefaultInvalidTokenCode is the API envelope code for a rejected token.
const DefaultInvalidTokenCode = 100

// maxBodySize caps catalog and item payloads.
const maxBodySize = 10 << 20

var itemIDPattern = regexp.MustCompile(`/items/(\d+)`)

// HTTPDoer issues an HTTP request. *client.Client satisfies it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CatalogConfig configures a CatalogService.
type CatalogConfig struct {
	Origins domain.Origins

	// MaxAttempts bounds the credential retry loop. Default: 3
	MaxAttempts int

	// InvalidTokenCode is the envelope code meaning the token was rejected. Default: 100
	InvalidTokenCode int

	// CookieName carries the token. Default: access_token_web
	CookieName string

	// PerPage is the catalog page size. Default: 96
	PerPage int

	Logger *slog.Logger
}

// CatalogService reads catalog search results and item details, drawing
// a credential for every request.
type CatalogService struct {
	creds  CredentialSource
	http   HTTPDoer
	cfg    CatalogConfig
	logger *slog.Logger

	cookieRe *regexp.Regexp
}

// NewCatalogService creates a catalog consumer.
func NewCatalogService(creds CredentialSource, doer HTTPDoer, cfg CatalogConfig) *CatalogService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InvalidTokenCode == 0 {
		cfg.InvalidTokenCode = DefaultInvalidTokenCode
	}
	if cfg.CookieName == "" {
		cfg.CookieName = domain.DefaultCookieName
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 96
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CatalogService{
		creds:  creds,
		http:   doer,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "catalog"),

		cookieRe: regexp.MustCompile(`(?:^|;\s*)` + regexp.QuoteMeta(cfg.CookieName) + `=([^;]+)`),
	}
}

// Search returns one page of catalog results for query, newest first.
func (s *CatalogService) Search(ctx context.Context, origin, query string, page int) (json.RawMessage, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("search_text", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(s.cfg.PerPage))
	params.Set("order", "newest_first")

	return s.get(ctx, origin, "/api/v2/catalog/items?"+params.Encode())
}

// Item returns the details of one listing.
func (s *CatalogService) Item(ctx context.Context, origin, id string) (json.RawMessage, error) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil, domain.ErrInvalidArgument.About("item id must be numeric: " + id)
	}
	return s.get(ctx, origin, "/api/v2/items/"+id)
}

// ItemByURL resolves the origin from the listing URL's host and returns
// the item details.
func (s *CatalogService) ItemByURL(ctx context.Context, rawURL string) (json.RawMessage, error) {
	o, ok := s.cfg.Origins.Resolve(rawURL)
	if !ok {
		return nil, domain.ErrUnknownOrigin.About(rawURL)
	}
	id, err := ExtractItemID(rawURL)
	if err != nil {
		return nil, err
	}
	return s.Item(ctx, o.Key, id)
}

// ExtractItemID returns the numeric id in a listing URL (/items/<id>...).
func ExtractItemID(rawURL string) (string, error) {
	m := itemIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", domain.ErrInvalidArgument.About("could not extract item id from " + rawURL)
	}
	return m[1], nil
}

func (s *CatalogService) get(ctx context.Context, origin, path string) (json.RawMessage, error) {
	o, ok := s.cfg.Origins.ByKey(origin)
	if !ok {
		return nil, domain.ErrUnknownOrigin.About(origin)
	}
	target := o.URL(path)

	return WithCredential(ctx, s.creds, origin, s.cfg.MaxAttempts,
		func(ctx context.Context, cred domain.Credential) (json.RawMessage, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return nil, domain.ErrInvalidArgument.Wrap(err)
			}
			req.Header.Set("Cookie", s.cfg.CookieName+"="+cred.Token)

			resp, err := s.http.Do(ctx, req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return nil, domain.ErrTransport.Wrap(err)
			}
			return s.interpret(origin, s.sentToken(resp, cred), resp.StatusCode, body)
		})
}

// sentToken returns the token carried by the request that produced resp.
// The transport may have replaced the drawn one while rotating on a 401.
func (s *CatalogService) sentToken(resp *http.Response, cred domain.Credential) string {
	if resp.Request != nil {
		if m := s.cookieRe.FindStringSubmatch(resp.Request.Header.Get("Cookie")); m != nil {
			return m[1]
		}
	}
	return cred.Token
}

// interpret maps a response to a payload or a domain error. token is the
// credential the origin saw.
func (s *CatalogService) interpret(origin, token string, status int, body []byte) (json.RawMessage, error) {
	switch {
	case status == http.StatusForbidden:
		return nil, domain.ErrEdgeBlocked.About(origin)
	case status == http.StatusUnauthorized:
		return nil, domain.ErrAuthRejected.About(origin)
	case status < 200 || status > 299:
		return nil, domain.ErrUnexpectedStatus.Aboutf("status %d", status)
	}

	var envelope struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.ErrUnexpectedStatus.About("response is not JSON").Wrap(err)
	}
	if envelope.Code != nil && *envelope.Code == s.cfg.InvalidTokenCode {
		s.logger.Info("token rejected by application", "origin", origin, "fp", domain.Fingerprint(token))
		return nil, &RejectedError{Token: token, Err: domain.ErrApplicationInvalidToken.About(origin)}
	}
	return json.RawMessage(body), nil
}

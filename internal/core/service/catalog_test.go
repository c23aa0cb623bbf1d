package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

type stdDoer struct{ c *http.Client }

func (d stdDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.c.Do(req.WithContext(ctx))
}

// catalogBackend answers per token: tokens listed in invalid get code 100.
type catalogBackend struct {
	mu      sync.Mutex
	status  int
	body    string
	invalid map[string]bool
	cookies []string
	paths   []string
}

func (b *catalogBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = append(b.cookies, r.Header.Get("Cookie"))
	b.paths = append(b.paths, r.URL.RequestURI())

	tok := strings.TrimPrefix(r.Header.Get("Cookie"), domain.DefaultCookieName+"=")
	if b.invalid[tok] {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":100,"message":"invalid_authentication_token"}`))
		return
	}
	if b.status != 0 {
		w.WriteHeader(b.status)
	}
	_, _ = w.Write([]byte(b.body))
}

func newCatalogFixture(t *testing.T, backend *catalogBackend, src CredentialSource) (*CatalogService, string) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	origins := domain.Origins{{Key: "com", BaseURL: srv.URL}}
	return NewCatalogService(src, stdDoer{srv.Client()}, CatalogConfig{Origins: origins, Logger: quietLogger()}), srv.URL
}

func TestCatalog_Search(t *testing.T) {
	backend := &catalogBackend{body: `{"items":[{"id":1}]}`}
	src := &fakeSource{creds: []domain.Credential{{Token: "eyJ-a"}}}
	svc, _ := newCatalogFixture(t, backend, src)

	got, err := svc.Search(context.Background(), "com", "nike air", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if string(got) != backend.body {
		t.Errorf("body = %s", got)
	}
	if backend.cookies[0] != "access_token_web=eyJ-a" {
		t.Errorf("Cookie = %q", backend.cookies[0])
	}
	path := backend.paths[0]
	for _, want := range []string{"/api/v2/catalog/items?", "search_text=nike+air", "page=1", "per_page=96", "order=newest_first"} {
		if !strings.Contains(path, want) {
			t.Errorf("request %q missing %q", path, want)
		}
	}
}

func TestCatalog_InvalidTokenIsDropped(t *testing.T) {
	backend := &catalogBackend{body: `{"item":{"id":42}}`, invalid: map[string]bool{"eyJ-bad": true}}
	src := &fakeSource{creds: []domain.Credential{{Token: "eyJ-bad"}, {Token: "eyJ-good"}}}
	svc, _ := newCatalogFixture(t, backend, src)

	got, err := svc.Item(context.Background(), "com", "42")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if string(got) != backend.body {
		t.Errorf("body = %s", got)
	}
	if len(src.invalidated) != 1 || src.invalidated[0] != "eyJ-bad" {
		t.Errorf("invalidated = %v, want [eyJ-bad]", src.invalidated)
	}
	if backend.paths[1] != "/api/v2/items/42" {
		t.Errorf("path = %q", backend.paths[1])
	}
}

func TestCatalog_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"edge block", http.StatusForbidden, "<html>challenge</html>", domain.ErrEdgeBlocked},
		{"unauthorized", http.StatusUnauthorized, "", domain.ErrAuthRejected},
		{"not found", http.StatusNotFound, `{"code":404}`, domain.ErrUnexpectedStatus},
		{"not json", http.StatusOK, "<html></html>", domain.ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &catalogBackend{status: tt.status, body: tt.body}
			src := &fakeSource{creds: []domain.Credential{{Token: "eyJ-a"}}}
			svc, _ := newCatalogFixture(t, backend, src)

			_, err := svc.Item(context.Background(), "com", "7")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(src.invalidated) != 0 {
				t.Errorf("non-token errors must not invalidate, got %v", src.invalidated)
			}
		})
	}
}

func TestCatalog_ItemByURL(t *testing.T) {
	backend := &catalogBackend{body: `{"item":{"id":123}}`}
	src := &fakeSource{creds: []domain.Credential{{Token: "eyJ-a"}}}
	svc, base := newCatalogFixture(t, backend, src)

	if _, err := svc.ItemByURL(context.Background(), base+"/items/123-blue-jacket?referrer=catalog"); err != nil {
		t.Fatalf("ItemByURL: %v", err)
	}
	if backend.paths[0] != "/api/v2/items/123" {
		t.Errorf("path = %q", backend.paths[0])
	}

	if _, err := svc.ItemByURL(context.Background(), "https://www.vinted.fr/items/1"); !errors.Is(err, domain.ErrUnknownOrigin) {
		t.Errorf("foreign host error = %v, want ErrUnknownOrigin", err)
	}
}

func TestCatalog_ArgumentErrors(t *testing.T) {
	svc, _ := newCatalogFixture(t, &catalogBackend{}, &fakeSource{creds: []domain.Credential{{Token: "x"}}})

	if _, err := svc.Item(context.Background(), "com", "abc"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("non-numeric id error = %v", err)
	}
	if _, err := svc.Search(context.Background(), "fr", "q", 1); !errors.Is(err, domain.ErrUnknownOrigin) {
		t.Errorf("unknown origin error = %v", err)
	}
}

func TestExtractItemID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.vinted.co.uk/items/4242-red-dress", "4242", false},
		{"https://www.vinted.com/items/99", "99", false},
		{"https://www.vinted.com/items/17?ref=home", "17", false},
		{"https://www.vinted.com/catalog?search_text=x", "", true},
		{"https://www.vinted.com/items/abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ExtractItemID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractItemID error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractItemID = %q, want %q", got, tt.want)
			}
		})
	}
}

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:8080", "http://localhost:8080"},
		{"with https prefix", "https://localhost:8080", "https://localhost:8080"},
		{"without prefix", "localhost:8080", "http://localhost:8080"},
		{"trailing slash", "localhost:8080/", "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewHTTPClient(tt.server, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestNewHTTPClient_BadCAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a cert"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewHTTPClient("https://localhost", Options{CAFile: path}); err == nil {
		t.Error("expected error for invalid CA file")
	}
}

func TestHTTPClient_Headers(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantKey string
	}{
		{"with key", "adm-key", "adm-key"},
		{"without key", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(chan http.Header, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got <- r.Header.Clone()
				w.Write([]byte(`{"data":{}}`))
			}))
			defer server.Close()

			client, _ := NewHTTPClient(server.URL, Options{APIKey: tt.apiKey})
			resp, err := client.Get(context.Background(), "/admin/v1/pool")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			resp.Body.Close()

			h := <-got
			if h.Get("X-API-Key") != tt.wantKey {
				t.Errorf("X-API-Key = %q, want %q", h.Get("X-API-Key"), tt.wantKey)
			}
			if h.Get("User-Agent") != userAgent {
				t.Errorf("User-Agent = %q", h.Get("User-Agent"))
			}
		})
	}
}

func TestHTTPClient_Post(t *testing.T) {
	type captured struct {
		contentType string
		body        string
	}
	got := make(chan captured, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- captured{r.Header.Get("Content-Type"), string(b)}
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client, _ := NewHTTPClient(server.URL, Options{})

	resp, err := client.Post(context.Background(), "/admin/v1/pool/com/invalidate", map[string]string{"fp": "abcd"})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()
	c := <-got
	if c.contentType != "application/json" || !strings.Contains(c.body, `"fp":"abcd"`) {
		t.Errorf("request = %+v", c)
	}

	resp, err = client.Post(context.Background(), "/admin/v1/pool/com/refill", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()
	if c := <-got; c.contentType != "" || c.body != "" {
		t.Errorf("nil body request = %+v", c)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantValid  int
		wantErr    bool
		wantCode   string
		wantStatus int
	}{
		{"success", 200, `{"request_id":"r","data":{"valid":3}}`, 3, false, "", 0},
		{"data on 503", 503, `{"data":{"valid":0}}`, 0, false, "", 0},
		{"error envelope", 404, `{"error":{"code":"SP-ARG-1001","message":"unknown origin: fr"}}`, 0, true, "SP-ARG-1001", 404},
		{"bare error status", 502, `<html>bad gateway</html>`, 0, true, "", 502},
		{"empty error", 500, `{}`, 0, true, "", 500},
		{"garbage success", 200, `not json`, 0, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(tt.status)
			rec.WriteString(tt.body)

			var target struct {
				Valid int `json:"valid"`
			}
			err := ParseResponse(rec.Result(), &target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if target.Valid != tt.wantValid {
				t.Errorf("valid = %d, want %d", target.Valid, tt.wantValid)
			}
			if tt.wantStatus == 0 {
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %T, want *APIError", err)
			}
			if apiErr.Code != tt.wantCode || !IsStatus(err, tt.wantStatus) {
				t.Errorf("apiErr = %+v", apiErr)
			}
		})
	}
}

func TestParseResponse_NilTarget(t *testing.T) {
	rec := httptest.NewRecorder()
	_ = json.NewEncoder(rec).Encode(map[string]any{"data": map[string]int{"x": 1}})
	if err := ParseResponse(rec.Result(), nil); err != nil {
		t.Errorf("ParseResponse(nil target) = %v", err)
	}
}

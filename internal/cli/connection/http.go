package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/sesspool-go/internal/infra/buildinfo"
	"github.com/yndnr/sesspool-go/internal/infra/tlsroots"
)

// DefaultTimeout bounds one CLI request. Refills can run for tens of
// seconds, so it is generous.
const DefaultTimeout = 2 * time.Minute

// userAgent identifies the CLI to the server.
var userAgent = buildinfo.UserAgent("sesspool-cli")

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Options configures an HTTPClient.
type Options struct {
	APIKey  string
	Timeout time.Duration

	// CAFile adds a CA bundle for HTTPS servers with private certificates.
	CAFile string
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	apiKey  string
}

// NewHTTPClient creates a client for server, adding http:// when no
// scheme is given.
func NewHTTPClient(server string, opts Options) (*HTTPClient, error) {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CAFile != "" {
		roots, err := tlsroots.Load(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("load CA file: %w", err)
		}
		transport.TLSClientConfig = roots.Apply(transport.TLSClientConfig)
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body. body may be nil.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponse unwraps the envelope and decodes data into target. A
// response carrying an error body, or a 4xx/5xx without data, returns
// *APIError. Some non-2xx responses (409 on a skipped refill, 503 while
// warming) still carry data and decode normally.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("parse response: %w", err)
	}

	if env.Error != nil {
		return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if len(env.Data) == 0 {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode}
		}
		return nil
	}

	if target != nil {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

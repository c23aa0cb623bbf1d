package client

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	utls "github.com/refraction-networking/utls"
)

// helloRecorder serves TLS and keeps the last ClientHello and the
// negotiated connection state.
type helloRecorder struct {
	mu    sync.Mutex
	hello *tls.ClientHelloInfo
	state *tls.ConnectionState
}

func (h *helloRecorder) Hello() *tls.ClientHelloInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hello
}

func (h *helloRecorder) State() *tls.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func newHelloServer(t *testing.T) (*httptest.Server, *helloRecorder, string) {
	t.Helper()
	rec := &helloRecorder{}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.state = r.TLS
		rec.mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	srv.TLS = &tls.Config{
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			rec.mu.Lock()
			rec.hello = hello
			rec.mu.Unlock()
			return nil, nil
		},
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(caFile, pemData, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return srv, rec, caFile
}

func TestDo_BrowserClientHello(t *testing.T) {
	srv, rec, caFile := newHelloServer(t)
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.CAFile = caFile })

	resp, err := c.Do(context.Background(), get(t, srv.URL, nil))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	hello := rec.Hello()
	if hello == nil {
		t.Fatal("server saw no ClientHello")
	}
	wantSigalgs := []tls.SignatureScheme{
		tls.ECDSAWithP256AndSHA256,
		tls.PSSWithSHA256,
		tls.PKCS1WithSHA256,
		tls.ECDSAWithP384AndSHA384,
		tls.PSSWithSHA384,
		tls.PKCS1WithSHA384,
		tls.PSSWithSHA512,
		tls.PKCS1WithSHA512,
	}
	if !slices.Equal(hello.SignatureSchemes, wantSigalgs) {
		t.Errorf("signature algorithms = %v, want %v", hello.SignatureSchemes, wantSigalgs)
	}
	if !slices.Equal(hello.SupportedProtos, []string{"http/1.1"}) {
		t.Errorf("ALPN = %v, want [http/1.1]", hello.SupportedProtos)
	}
	for _, suite := range []uint16{
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	} {
		if !slices.Contains(hello.CipherSuites, suite) {
			t.Errorf("cipher suites %v lack %#04x", hello.CipherSuites, suite)
		}
	}
	if !slices.Contains(hello.SupportedCurves, tls.X25519) {
		t.Errorf("curves = %v, want X25519 offered", hello.SupportedCurves)
	}

	state := rec.State()
	if state == nil || state.Version != tls.VersionTLS13 {
		t.Errorf("negotiated state = %+v, want TLS 1.3", state)
	}
}

func TestBrowserHelloSpec(t *testing.T) {
	spec, err := browserHelloSpec()
	if err != nil {
		t.Fatalf("browserHelloSpec: %v", err)
	}
	var alpn *utls.ALPNExtension
	for _, ext := range spec.Extensions {
		if a, ok := ext.(*utls.ALPNExtension); ok {
			alpn = a
		}
	}
	if alpn == nil || !slices.Equal(alpn.AlpnProtocols, []string{"http/1.1"}) {
		t.Errorf("ALPN extension = %+v, want http/1.1 only", alpn)
	}
}

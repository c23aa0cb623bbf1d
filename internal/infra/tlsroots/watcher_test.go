package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writePair writes a self-signed server pair for cn that expires after ttl.
func writePair(t *testing.T, certFile, keyFile, cn string, ttl time.Duration) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(ttl),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
}

func pairPaths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "admin.crt"), filepath.Join(dir, "admin.key")
}

func servedCN(t *testing.T, w *Watcher) string {
	t.Helper()
	cert, err := w.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return leaf.Subject.CommonName
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWatcher(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, "admin.local", 90*24*time.Hour)

	w, err := NewWatcher(certFile, keyFile, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if cn := servedCN(t, w); cn != "admin.local" {
		t.Errorf("served CN = %q", cn)
	}
	if d := time.Until(w.NotAfter()); d < 89*24*time.Hour {
		t.Errorf("NotAfter() is %v away, want ~90 days", d)
	}
}

func TestNewWatcher_Errors(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	_ = os.WriteFile(certFile, []byte("not pem"), 0644)
	_ = os.WriteFile(keyFile, []byte("not pem"), 0600)

	for name, paths := range map[string][2]string{
		"garbage": {certFile, keyFile},
		"missing": {"/nonexistent/admin.crt", "/nonexistent/admin.key"},
	} {
		if _, err := NewWatcher(paths[0], paths[1], WithLogger(quietLogger())); err == nil {
			t.Errorf("%s: NewWatcher() expected error", name)
		}
	}
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, "old.local", time.Hour)

	w, err := NewWatcher(certFile, keyFile, WithLogger(quietLogger()), WithSettle(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.StartAsync()
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	writePair(t, certFile, keyFile, "new.local", time.Hour)

	deadline := time.Now().Add(3 * time.Second)
	for servedCN(t, w) != "new.local" {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not pick up the rotated pair")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_BadRotationKeepsPrevious(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, "good.local", time.Hour)

	w, err := NewWatcher(certFile, keyFile, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	_ = os.WriteFile(keyFile, []byte("truncated"), 0600)

	if err := w.reload(); err == nil {
		t.Fatal("reload() of a broken pair should fail")
	}
	if cn := servedCN(t, w); cn != "good.local" {
		t.Errorf("served CN after failed reload = %q, want good.local", cn)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, "admin.local", time.Hour)

	w, err := NewWatcher(certFile, keyFile, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Start() }()
	time.Sleep(50 * time.Millisecond)

	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop")
	}
}

func TestWatcher_ServesHTTPS(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writePair(t, certFile, keyFile, "admin.local", time.Hour)

	w, err := NewWatcher(certFile, keyFile, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "ok")
	}))
	srv.TLS = w.ServerConfig()
	srv.StartTLS()
	defer srv.Close()

	// The CLI trusts the admin certificate through Load(caFile). SNI makes
	// the server consult GetCertificate instead of httptest's own pair.
	roots, err := Load(certFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: roots.Apply(&tls.Config{ServerName: "admin.local"})}}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET over watcher TLS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits after the last change
// before reloading. Writers usually replace cert and key back to back.
const DefaultSettle = 250 * time.Millisecond

// Watcher serves the admin listener's certificate/key pair and reloads
// it when either file changes. A failed reload keeps the previous pair.
type Watcher struct {
	certFile string
	keyFile  string
	settle   time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
	leaf *x509.Certificate

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// NewWatcher loads the pair and returns a watcher serving it.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		settle:   DefaultSettle,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "tls", "cert_file", w.certFile)

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return w, nil
}

// Start watches both files until Stop is called. Bursts of events are
// coalesced into one reload once the files have been quiet for the
// settle period.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range uniqueDirs(w.certFile, w.keyFile) {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.settle)
		case <-timer.C:
			if err := w.reload(); err != nil {
				w.logger.Error("certificate reload failed, keeping previous pair", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)
		case <-w.done:
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if name != w.certFile && name != w.keyFile {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.logger.Error("certificate watcher stopped", "error", err)
		}
	}()
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// GetCertificate implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}

// NotAfter returns the expiry of the certificate being served.
func (w *Watcher) NotAfter() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.leaf.NotAfter
}

// ServerConfig returns a TLS 1.2+ server config backed by the watcher.
func (w *Watcher) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

func (w *Watcher) reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf := cert.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return fmt.Errorf("parse leaf: %w", err)
		}
	}

	w.mu.Lock()
	w.cert = &cert
	w.leaf = leaf
	w.mu.Unlock()

	w.logger.Info("certificate loaded", "subject", leaf.Subject.CommonName, "not_after", leaf.NotAfter)
	if time.Until(leaf.NotAfter) < 7*24*time.Hour {
		w.logger.Warn("certificate expires within a week", "not_after", leaf.NotAfter)
	}
	return nil
}

func uniqueDirs(paths ...string) []string {
	seen := make(map[string]bool, len(paths))
	var dirs []string
	for _, p := range paths {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

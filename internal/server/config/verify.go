package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/yndnr/sesspool-go/internal/storage/snapshot"
)

// Verify validates the configuration. Every problem found is reported.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyOrigins(cfg),
		verifyPool(&cfg.Pool),
		verifyClient(&cfg.Client),
		verifyStorage(&cfg.Storage),
		verifySecurity(&cfg.Security),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http: tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	return nil
}

func verifyOrigins(cfg *ServerConfig) error {
	if len(cfg.Origins) == 0 {
		return errors.New("origins: at least one origin is required")
	}
	seen := make(map[string]bool, len(cfg.Origins))
	for i, o := range cfg.Origins {
		if o.Key == "" {
			return fmt.Errorf("origins[%d]: key is required", i)
		}
		if seen[o.Key] {
			return fmt.Errorf("origins[%d]: duplicate key %q", i, o.Key)
		}
		seen[o.Key] = true

		u, err := url.Parse(o.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("origins[%d]: base_url %q must be an absolute http(s) URL", i, o.BaseURL)
		}
	}
	return nil
}

func verifyPool(cfg *PoolSection) error {
	switch cfg.Mode {
	case PoolModePooled, PoolModeSingle:
	default:
		return fmt.Errorf("pool.mode: %q is not one of pooled, single", cfg.Mode)
	}
	if cfg.MaxCapacity < 1 {
		return errors.New("pool.max_capacity must be at least 1")
	}
	if cfg.MinThreshold < 1 || cfg.MinThreshold > cfg.MaxCapacity {
		return fmt.Errorf("pool.min_threshold must be between 1 and max_capacity (%d)", cfg.MaxCapacity)
	}
	if cfg.Lifetime <= 0 {
		return errors.New("pool.lifetime must be positive")
	}
	if cfg.PacingBase < 0 || cfg.PacingJitter < 0 {
		return errors.New("pool.pacing_base and pool.pacing_jitter must not be negative")
	}
	if cfg.MaintainInterval < 0 {
		return errors.New("pool.maintain_interval must not be negative")
	}
	return nil
}

func verifyClient(cfg *ClientSection) error {
	if cfg.RateLimit < 0 {
		return errors.New("client.rate_limit must not be negative")
	}
	if cfg.CAFile != "" {
		if _, err := os.Stat(cfg.CAFile); err != nil {
			return fmt.Errorf("client.ca_file: %w", err)
		}
	}
	if strings.ContainsAny(cfg.CookieName, "=; ") {
		return fmt.Errorf("client.cookie_name %q is not a valid cookie name", cfg.CookieName)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case BackendFile:
		if cfg.SnapshotPath == "" {
			return errors.New("storage.snapshot_path is required for the file backend")
		}
	case BackendBadger:
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend: %q is not one of file, badger, memory", cfg.Backend)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) < snapshot.MinPassphraseLength {
		return fmt.Errorf("security.encryption_key must be at least %d characters", snapshot.MinPassphraseLength)
	}
	switch cfg.Cipher {
	case "", snapshot.CipherAESGCM, snapshot.CipherChaCha20:
	default:
		return fmt.Errorf("security.cipher: %q is not supported", cfg.Cipher)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: %q is not one of json, text", cfg.Format)
	}
	return nil
}

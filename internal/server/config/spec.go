package config

import (
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// ServerConfig is the root configuration for sesspool-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Origins  []domain.Origin `koanf:"origins"`
	Pool     PoolSection     `koanf:"pool"`
	Client   ClientSection   `koanf:"client"`
	Proxy    ProxySection    `koanf:"proxy"`
	Catalog  CatalogSection  `koanf:"catalog"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures the admin endpoint.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the admin HTTP server. TLS is enabled when both
// files are set; the pair is reloaded when it changes on disk.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// Pool modes.
const (
	PoolModePooled = "pooled"
	PoolModeSingle = "single"
)

// PoolSection configures the credential pool.
type PoolSection struct {
	// Mode is "pooled" (many short-lived tokens) or "single" (one token
	// per origin living 24h).
	Mode string `koanf:"mode"`

	MaxCapacity  int           `koanf:"max_capacity"`
	MinThreshold int           `koanf:"min_threshold"`
	Lifetime     time.Duration `koanf:"lifetime"`

	// PacingBase and PacingJitter set the delay before each token fetch.
	PacingBase   time.Duration `koanf:"pacing_base"`
	PacingJitter time.Duration `koanf:"pacing_jitter"`

	// MaintainInterval keeps every origin warm in the background.
	// Zero disables the maintainer.
	MaintainInterval time.Duration `koanf:"maintain_interval"`
}

// ClientSection configures the outbound client.
type ClientSection struct {
	Timeout      time.Duration `koanf:"timeout"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	MaxRedirects int           `koanf:"max_redirects"`

	// RateLimit is requests per second across all origins; 0 is unlimited.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	CAFile     string `koanf:"ca_file"`
	UserAgent  string `koanf:"user_agent"`
	CookieName string `koanf:"cookie_name"`
}

// ProxySection points at the proxy settings file. PROXY_* environment
// variables apply on top of it.
type ProxySection struct {
	SettingsFile string `koanf:"settings_file"`
}

// CatalogSection configures the catalog consumer.
type CatalogSection struct {
	MaxAttempts      int `koanf:"max_attempts"`
	InvalidTokenCode int `koanf:"invalid_token_code"`
	PerPage          int `koanf:"per_page"`
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// StorageSection configures persistence.
type StorageSection struct {
	// Backend is "file", "badger" or "memory".
	Backend string `koanf:"backend"`

	// SnapshotPath is the file backend's document.
	SnapshotPath string `koanf:"snapshot_path"`

	// DataDir is the badger backend's directory.
	DataDir    string        `koanf:"data_dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// SecuritySection configures secrets.
type SecuritySection struct {
	// EncryptionKey seals the snapshot file when set.
	EncryptionKey string `koanf:"encryption_key"`

	// Cipher is "aes-gcm" or "chacha20-poly1305"; empty picks by platform.
	Cipher string `koanf:"cipher"`

	// AdminAPIKey protects /admin and /v1 routes when set.
	AdminAPIKey string `koanf:"admin_api_key"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

package config

import (
	"time"

	"github.com/yndnr/sesspool-go/internal/client"
	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/core/service"
	"github.com/yndnr/sesspool-go/internal/storage/snapshot"
)

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:5080"

	DefaultPacingBase       = 500 * time.Millisecond
	DefaultPacingJitter     = time.Second
	DefaultMaintainInterval = time.Minute

	DefaultDataDir    = "data/badger"
	DefaultGCInterval = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultOrigins are the regional sites served out of the box.
func DefaultOrigins() []domain.Origin {
	return []domain.Origin{
		{Key: "co.uk", BaseURL: "https://www.vinted.co.uk"},
		{Key: "com", BaseURL: "https://www.vinted.com"},
	}
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
		},
		Origins: DefaultOrigins(),
		Pool: PoolSection{
			Mode:             PoolModePooled,
			MaxCapacity:      domain.DefaultMaxCapacity,
			MinThreshold:     domain.DefaultMinThreshold,
			Lifetime:         domain.DefaultLifetime,
			PacingBase:       DefaultPacingBase,
			PacingJitter:     DefaultPacingJitter,
			MaintainInterval: DefaultMaintainInterval,
		},
		Client: ClientSection{
			Timeout:      client.DefaultTimeout,
			FetchTimeout: client.DefaultFetchTimeout,
			MaxRedirects: client.DefaultMaxRedirects,
			RateBurst:    1,
			CookieName:   domain.DefaultCookieName,
		},
		Proxy: ProxySection{
			SettingsFile: client.DefaultProxySettingsFile,
		},
		Catalog: CatalogSection{
			MaxAttempts:      service.DefaultMaxAttempts,
			InvalidTokenCode: service.DefaultInvalidTokenCode,
			PerPage:          96,
		},
		Storage: StorageSection{
			Backend:      BackendFile,
			SnapshotPath: snapshot.DefaultPath,
			DataDir:      DefaultDataDir,
			GCInterval:   DefaultGCInterval,
			SyncWrites:   true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/yndnr/sesspool-go/internal/client"
	"github.com/yndnr/sesspool-go/internal/core/service"
	"github.com/yndnr/sesspool-go/internal/infra/buildinfo"
	"github.com/yndnr/sesspool-go/internal/infra/confloader"
	"github.com/yndnr/sesspool-go/internal/infra/shutdown"
	"github.com/yndnr/sesspool-go/internal/infra/tlsroots"
	"github.com/yndnr/sesspool-go/internal/server/config"
	"github.com/yndnr/sesspool-go/internal/server/httpserver"
	"github.com/yndnr/sesspool-go/internal/storage"
	"github.com/yndnr/sesspool-go/internal/storage/snapshot"
	"github.com/yndnr/sesspool-go/internal/telemetry/logger"
	"github.com/yndnr/sesspool-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sesspool-server %s\n", buildinfo.String())
		return nil
	}

	cfg, overrides, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	build := buildinfo.Get()
	log.Info("starting sesspool-server",
		"version", build.Version,
		"commit", build.Commit,
		"go", build.GoVersion,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg), "env_overrides", overrides)

	metrics := metric.NewRegistry()

	persist, closer, err := initStore(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	proxy, err := client.LoadProxySettings(cfg.Proxy.SettingsFile)
	if err != nil {
		return err
	}
	if proxy.Enabled() {
		log.Info("routing origin traffic through SOCKS5 proxy", "addr", proxy.Address())
	}

	httpClient, err := client.New(client.Config{
		Origins:      cfg.Origins,
		Timeout:      cfg.Client.Timeout,
		FetchTimeout: cfg.Client.FetchTimeout,
		MaxRedirects: cfg.Client.MaxRedirects,
		RateLimit:    cfg.Client.RateLimit,
		RateBurst:    cfg.Client.RateBurst,
		CookieName:   cfg.Client.CookieName,
		CAFile:       cfg.Client.CAFile,
		UserAgent:    cfg.Client.UserAgent,
		Proxy:        proxy,
		Logger:       log,
		Metrics:      metrics,
	})
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	pool := service.NewPool(poolConfig(cfg, log, metrics), persist, httpClient)
	httpClient.SetCredentials(pool)
	if err := metrics.RegisterPool(pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Load(ctx); err != nil {
		log.Warn("starting with an empty pool", "error", err)
	}
	go pool.Maintain(ctx, cfg.Pool.MaintainInterval)

	catalog := service.NewCatalogService(pool, httpClient, service.CatalogConfig{
		Origins:          cfg.Origins,
		MaxAttempts:      cfg.Catalog.MaxAttempts,
		InvalidTokenCode: cfg.Catalog.InvalidTokenCode,
		CookieName:       cfg.Client.CookieName,
		PerPage:          cfg.Catalog.PerPage,
		Logger:           log,
	})

	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Pool = pool
	routerCfg.Catalog = catalog
	routerCfg.Metrics = metrics
	routerCfg.Logger = log
	routerCfg.Version = build.Version
	routerCfg.APIKey = cfg.Security.AdminAPIKey
	routerCfg.MetricsAuthRequired = cfg.Security.AdminAPIKey != ""

	tlsConfig, certWatcher, err := initTLS(cfg, log)
	if err != nil {
		return fmt.Errorf("init TLS: %w", err)
	}

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg), tlsConfig)
	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(30*time.Second, log)

	// Hooks run in reverse order: stop serving, stop maintenance, then
	// close the store so the last snapshot write lands first.
	shutdownHandler.OnShutdown("store", func(context.Context) error {
		return closer.Close()
	})
	shutdownHandler.OnShutdown("maintenance", func(context.Context) error {
		cancel()
		if certWatcher != nil {
			certWatcher.Stop()
		}
		return nil
	})
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	if *configFile != "" {
		stop, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	go func() {
		log.Info("admin API listening", "addr", ln.Addr().String(), "tls", tlsConfig != nil)
		if err := httpServer.Serve(ln); err != nil {
			log.Error("admin API error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers the file and SESSPOOL_* environment over defaults.
// It also returns the keys the environment set. Single-level variables
// such as SESSPOOL_SERVER belong to the CLI and are ignored.
func loadConfig(configFile string) (*config.ServerConfig, []string, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithMinEnvDepth(2)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader.Overrides(), nil
}

// initLogger installs the redacting logger as the process default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

func poolConfig(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) service.PoolConfig {
	pc := service.PoolConfig{
		Origins:      cfg.Origins,
		MaxCapacity:  cfg.Pool.MaxCapacity,
		MinThreshold: cfg.Pool.MinThreshold,
		Lifetime:     cfg.Pool.Lifetime,
		PacingBase:   cfg.Pool.PacingBase,
		PacingJitter: cfg.Pool.PacingJitter,
		Logger:       log,
		Metrics:      metrics,
	}
	if cfg.Pool.Mode == config.PoolModeSingle {
		return service.SingleTokenConfig(pc)
	}
	return pc
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// initStore selects the persistence backend. The memory backend returns
// a nil store, which disables persistence.
func initStore(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (service.Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		bc := storage.DefaultBadgerConfig(cfg.Storage.DataDir)
		bc.GCInterval = cfg.Storage.GCInterval
		bc.SyncWrites = cfg.Storage.SyncWrites
		store, err := storage.NewBadgerStore(bc, log)
		if err != nil {
			return nil, nil, err
		}
		store.RegisterMetrics(metrics.Registerer())
		log.Info("credential store ready", "backend", "badger", "dir", bc.Dir)
		return store, store, nil

	case config.BackendMemory:
		log.Warn("credential persistence disabled", "backend", "memory")
		return nil, nopCloser{}, nil

	default:
		sc := snapshot.Config{Path: cfg.Storage.SnapshotPath, Logger: log}
		if cfg.Security.EncryptionKey != "" {
			sealer, err := snapshot.NewSealer(cfg.Security.EncryptionKey, cfg.Security.Cipher)
			if err != nil {
				return nil, nil, err
			}
			sc.Sealer = sealer
		}
		store, err := snapshot.NewFileStore(sc)
		if err != nil {
			return nil, nil, err
		}
		log.Info("credential store ready", "backend", "file", "path", store.Path(), "sealed", sc.Sealer != nil)
		return store, store, nil
	}
}

// initTLS returns nil when the admin API serves plain HTTP.
func initTLS(cfg *config.ServerConfig, log *slog.Logger) (*tls.Config, *tlsroots.Watcher, error) {
	h := cfg.Server.HTTP
	if h.TLSCertFile == "" {
		return nil, nil, nil
	}
	w, err := tlsroots.NewWatcher(h.TLSCertFile, h.TLSKeyFile, tlsroots.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	w.StartAsync()
	return w.ServerConfig(), w, nil
}

// watchConfig re-reads the config file on change and applies the log
// level. Other settings take effect on restart.
func watchConfig(path string, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, _, err := loadConfig(path)
		if err != nil {
			log.Error("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Error("log level not applied", "error", err)
			return
		}
		log.Info("log level changed", "level", cfg.Log.Level)
	})
	w.StartAsync()
	return w.Stop, nil
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/storage/snapshot"
)

// KeyPrefix prefixes every per-origin key.
const KeyPrefix = "pool/"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("badger store closed")

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string

	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// SyncWrites fsyncs after each write.
	// Default: true
	SyncWrites bool

	// InMemory runs Badger without touching disk.
	InMemory bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   8 << 20,
		SyncWrites:  true,
	}
}

// BadgerStore persists the pool in Badger, one key per origin.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerStore opens a Badger-backed pool store.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}
	logger = logger.With("component", "badger")

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.gcLoop()

	logger.Info("badger store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return s, nil
}

// Load reads every origin. Values that cannot be decoded are deleted.
func (s *BadgerStore) Load(ctx context.Context) (map[string][]domain.Credential, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	pool := make(map[string][]domain.Credential)
	var corrupt [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(KeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			origin := string(bytes.TrimPrefix(key, []byte(KeyPrefix)))
			creds, err := snapshot.UnmarshalList(value)
			if err != nil {
				s.logger.Warn("discarding corrupt pool entry",
					"origin", origin,
					"error", domain.ErrCorruptState.Wrap(err))
				corrupt = append(corrupt, key)
				continue
			}
			pool[origin] = creds
		}
		return nil
	})
	if err != nil {
		return nil, domain.ErrStorage.Wrap(err)
	}

	if len(corrupt) > 0 {
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range corrupt {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("failed to delete corrupt pool entries", "error", err)
		}
	}

	return pool, nil
}

// Save replaces the stored pool with pool in one transaction.
func (s *BadgerStore) Save(ctx context.Context, pool map[string][]domain.Credential) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(KeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := pool[string(bytes.TrimPrefix(key, []byte(KeyPrefix)))]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for origin, creds := range pool {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := snapshot.MarshalList(creds)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(KeyPrefix+origin), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	return nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (s *BadgerStore) GC() error {
	start := time.Now()
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.logger.Debug("gc completed", "rewrites", runs, "elapsed", time.Since(start))
	return nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	s.logger.Info("badger store closed")
	return nil
}

// RegisterMetrics registers Badger size gauges with registry.
func (s *BadgerStore) RegisterMetrics(registry prometheus.Registerer) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sesspool",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sesspool",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sesspool",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})

	registry.MustRegister(s.metricsLSMSize, s.metricsValueLogSize, s.metricsLastGCTime)
	s.updateMetrics()
	return s
}

func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil || s.closed.Load() {
		return
	}
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
	if ts := s.lastGCTime.Load(); ts > 0 {
		s.metricsLastGCTime.Set(float64(ts) / 1000.0)
	}
}

// gcLoop runs periodic garbage collection and refreshes metrics.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.GC(); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

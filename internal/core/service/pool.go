package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/storage/memory"
	"github.com/yndnr/sesspool-go/internal/telemetry/metric"
)

// Store persists the whole pool. Implementations treat the data as a
// cache: Load returns an empty map rather than failing on corrupt state.
type Store interface {
	Load(ctx context.Context) (map[string][]domain.Credential, error)
	Save(ctx context.Context, pool map[string][]domain.Credential) error
}

// TokenFetcher obtains one fresh session token for an origin.
type TokenFetcher interface {
	FetchToken(ctx context.Context, origin string) (string, error)
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Origins lists the origins the pool serves. Other keys are rejected.
	Origins domain.Origins

	// MaxCapacity bounds credentials per origin. Default: 20
	MaxCapacity int

	// MinThreshold is the valid count below which Acquire replenishes. Default: 3
	MinThreshold int

	// Lifetime is the TTL assigned to fetched tokens. Default: 10m
	Lifetime time.Duration

	// PacingBase and PacingJitter set the delay before each fetch attempt:
	// base + uniform[0, jitter). Defaults: 500ms, 1s
	PacingBase   time.Duration
	PacingJitter time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// SingleTokenConfig returns cfg adjusted for single-token mode: one
// long-lived credential per origin.
func SingleTokenConfig(cfg PoolConfig) PoolConfig {
	cfg.MaxCapacity = 1
	cfg.MinThreshold = 1
	cfg.Lifetime = domain.SingleTokenLifetime
	return cfg
}

// PoolStats summarizes one origin.
type PoolStats struct {
	Origin       string `json:"origin"`
	Valid        int    `json:"valid"`
	Total        int    `json:"total"`
	Capacity     int    `json:"capacity"`
	MinThreshold int    `json:"min_threshold"`
	Replenishing bool   `json:"replenishing"`
}

// Pool is a capacity-bounded, self-replenishing cache of session
// credentials keyed by origin. It is safe for concurrent use.
type Pool struct {
	cfg     PoolConfig
	store   *memory.Store
	persist Store
	fetcher TokenFetcher
	logger  *slog.Logger
	metrics *metric.Registry

	// mu serializes mutations together with their persistence so a
	// snapshot write never interleaves with another mutation.
	mu sync.Mutex

	// replenishing is the process-wide single-flight guard.
	replenishing atomic.Bool
	inflight     atomic.Value // string: origin of the active run

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
	intn   func(n int) int
}

// NewPool creates a pool. persist may be nil to disable persistence.
func NewPool(cfg PoolConfig, persist Store, fetcher TokenFetcher) *Pool {
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = domain.DefaultMaxCapacity
	}
	if cfg.MinThreshold <= 0 {
		cfg.MinThreshold = domain.DefaultMinThreshold
	}
	if cfg.MinThreshold > cfg.MaxCapacity {
		cfg.MinThreshold = cfg.MaxCapacity
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = domain.DefaultLifetime
	}
	if cfg.PacingBase < 0 {
		cfg.PacingBase = 0
	}
	if cfg.PacingJitter < 0 {
		cfg.PacingJitter = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pool{
		cfg:     cfg,
		store:   memory.New(cfg.MaxCapacity),
		persist: persist,
		fetcher: fetcher,
		logger:  cfg.Logger.With("component", "pool"),
		metrics: cfg.Metrics,
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  rand.Int64N,
		intn:    rand.IntN,
	}
	p.inflight.Store("")
	return p
}

// Config returns the effective configuration.
func (p *Pool) Config() PoolConfig {
	return p.cfg
}

// Origin returns the configured origin for key.
func (p *Pool) Origin(key string) (domain.Origin, bool) {
	return p.cfg.Origins.ByKey(key)
}

// Load populates the pool from the persistent store. Origins that are
// no longer configured are dropped.
func (p *Pool) Load(ctx context.Context) error {
	if p.persist == nil {
		return nil
	}
	data, err := p.persist.Load(ctx)
	if err != nil {
		return err
	}

	kept := make(map[string][]domain.Credential, len(data))
	for origin, creds := range data {
		if _, ok := p.Origin(origin); !ok {
			p.logger.Warn("dropping credentials for unconfigured origin", "origin", origin, "count", len(creds))
			continue
		}
		kept[origin] = creds
	}

	p.mu.Lock()
	p.store.Replace(kept)
	p.mu.Unlock()

	now := p.now()
	for origin := range kept {
		p.logger.Info("pool restored",
			"origin", origin,
			"total", p.store.Len(origin),
			"valid", len(p.store.Valid(origin, now)))
	}
	return nil
}

// Acquire returns the origin's valid credentials, newest first. Expired
// entries are pruned. When fewer than MinThreshold remain, or force is
// set, a replenishment run sized to refill the pool completes before
// Acquire returns. If another run is already in flight Acquire does not
// wait; it returns the current set.
func (p *Pool) Acquire(ctx context.Context, origin string, force bool) ([]domain.Credential, error) {
	if _, ok := p.Origin(origin); !ok {
		return nil, domain.ErrUnknownOrigin.About(origin)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := p.now()
	p.mu.Lock()
	if pruned := p.store.PruneExpired(origin, now); pruned > 0 {
		p.logger.Debug("pruned expired credentials", "origin", origin, "count", pruned)
		p.saveLocked(ctx)
	}
	p.mu.Unlock()

	valid := p.store.Valid(origin, now)
	if len(valid) >= p.cfg.MinThreshold && !force {
		return valid, nil
	}

	count := p.cfg.MaxCapacity - len(valid)
	if count < 1 {
		count = 1
	}
	if res := p.Replenish(ctx, origin, count); res.Skipped {
		return valid, nil
	}
	return p.store.Valid(origin, p.now()), nil
}

// Invalidate removes token from the origin's pool and returns the
// remaining valid credentials. Removing an absent token is a no-op.
func (p *Pool) Invalidate(ctx context.Context, origin, token string) ([]domain.Credential, error) {
	_, remaining, err := p.Revoke(ctx, origin, token)
	return remaining, err
}

// Revoke is Invalidate that also reports whether token was in the pool.
func (p *Pool) Revoke(ctx context.Context, origin, token string) (bool, []domain.Credential, error) {
	if _, ok := p.Origin(origin); !ok {
		return false, nil, domain.ErrUnknownOrigin.About(origin)
	}

	p.mu.Lock()
	removed := p.store.Remove(origin, token)
	if removed {
		p.saveLocked(ctx)
		p.metrics.IncInvalidation(origin)
		p.logger.Info("credential invalidated", "origin", origin, "fp", domain.Fingerprint(token))
	}
	p.mu.Unlock()

	return removed, p.store.Valid(origin, p.now()), nil
}

// PickRandom returns a uniformly random element of creds, or false
// when creds is empty.
func (p *Pool) PickRandom(creds []domain.Credential) (domain.Credential, bool) {
	if len(creds) == 0 {
		return domain.Credential{}, false
	}
	return creds[p.intn(len(creds))], true
}

// Draw acquires the origin's pool and picks one credential. An empty
// pool gets one forced replenishment; if that still yields nothing the
// pool is exhausted.
func (p *Pool) Draw(ctx context.Context, origin string) (domain.Credential, error) {
	creds, err := p.Acquire(ctx, origin, false)
	if err != nil {
		return domain.Credential{}, err
	}
	if c, ok := p.PickRandom(creds); ok {
		return c, nil
	}

	creds, err = p.Acquire(ctx, origin, true)
	if err != nil {
		return domain.Credential{}, err
	}
	if c, ok := p.PickRandom(creds); ok {
		return c, nil
	}
	return domain.Credential{}, domain.ErrPoolExhausted.About(origin)
}

// Snapshot returns a copy of every origin's credentials, expired included.
func (p *Pool) Snapshot() map[string][]domain.Credential {
	return p.store.All()
}

// Stats summarizes origin.
func (p *Pool) Stats(origin string) PoolStats {
	return PoolStats{
		Origin:       origin,
		Valid:        len(p.store.Valid(origin, p.now())),
		Total:        p.store.Len(origin),
		Capacity:     p.cfg.MaxCapacity,
		MinThreshold: p.cfg.MinThreshold,
		Replenishing: p.replenishing.Load() && p.inflight.Load().(string) == origin,
	}
}

// PoolSizes implements metric.PoolSource for every configured origin.
func (p *Pool) PoolSizes() map[string]metric.PoolSize {
	out := make(map[string]metric.PoolSize, len(p.cfg.Origins))
	for _, key := range p.cfg.Origins.Keys() {
		s := p.Stats(key)
		out[key] = metric.PoolSize{Valid: s.Valid, Total: s.Total, Replenishing: s.Replenishing}
	}
	return out
}

// Maintain keeps every configured origin warm by calling Acquire on
// each tick until ctx is done.
func (p *Pool) Maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("pool maintainer started", "interval", interval, "origins", len(p.cfg.Origins))
	for {
		for _, key := range p.cfg.Origins.Keys() {
			if _, err := p.Acquire(ctx, key, false); err != nil && ctx.Err() == nil {
				p.logger.Warn("maintenance acquire failed", "origin", key, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pool maintainer stopped")
			return
		case <-ticker.C:
		}
	}
}

// saveLocked persists the current pool. Caller holds p.mu. Failures are
// logged: the snapshot is a cache and the in-memory pool stays usable.
func (p *Pool) saveLocked(ctx context.Context) {
	if p.persist == nil {
		return
	}
	start := time.Now()
	err := p.persist.Save(context.WithoutCancel(ctx), p.store.All())
	p.metrics.ObserveSnapshotWrite(time.Since(start).Seconds(), err)
	if err != nil {
		p.logger.Error("failed to persist pool", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

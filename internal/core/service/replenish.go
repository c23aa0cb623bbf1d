package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/sesspool-go/internal/core/domain"
	"github.com/yndnr/sesspool-go/internal/telemetry/metric"
)

// ReplenishResult reports one replenishment run.
type ReplenishResult struct {
	RunID      string        `json:"run_id,omitempty"`
	Origin     string        `json:"origin"`
	Requested  int           `json:"requested"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Replenish fetches up to count fresh tokens for origin, one at a time,
// each preceded by a jittered pacing delay. At most one run is active per
// pool: a concurrent call returns immediately with Skipped set. Failed
// attempts are counted and the run continues; duplicate tokens are
// dropped. Every insertion is persisted. Replenish never fails; a
// cancelled ctx ends the run early.
func (p *Pool) Replenish(ctx context.Context, origin string, count int) ReplenishResult {
	res := ReplenishResult{Origin: origin, Requested: count}

	if _, ok := p.Origin(origin); !ok {
		p.logger.Warn("replenish requested for unknown origin", "origin", origin)
		return res
	}
	if count <= 0 {
		return res
	}

	if !p.replenishing.CompareAndSwap(false, true) {
		p.logger.Info("replenishment already in progress, skipping",
			"origin", origin,
			"active_origin", p.inflight.Load().(string))
		p.metrics.RecordReplenishRun(origin, "skipped", 0)
		res.Skipped = true
		return res
	}
	p.inflight.Store(origin)
	defer func() {
		p.inflight.Store("")
		p.replenishing.Store(false)
	}()

	res.RunID = ulid.Make().String()
	log := p.logger.With("origin", origin, "run_id", res.RunID)
	start := time.Now()
	log.Info("replenishment started", "requested", count)

	for i := 0; i < count; i++ {
		if err := p.sleep(ctx, p.pacing()); err != nil {
			log.Warn("replenishment interrupted", "attempt", i+1, "error", err)
			break
		}

		token, err := p.fetcher.FetchToken(ctx, origin)
		if err != nil {
			res.Failed++
			p.metrics.RecordReplenishAttempt(origin, metric.OutcomeFailure)
			log.Warn("token fetch failed", "attempt", i+1, "error", err)
			continue
		}

		if !p.insert(ctx, origin, domain.NewCredential(token, p.now(), p.cfg.Lifetime)) {
			res.Duplicates++
			p.metrics.RecordReplenishAttempt(origin, metric.OutcomeDuplicate)
			log.Debug("duplicate token dropped", "attempt", i+1, "fp", domain.Fingerprint(token))
			continue
		}
		res.Succeeded++
		p.metrics.RecordReplenishAttempt(origin, metric.OutcomeSuccess)
	}

	p.mu.Lock()
	p.saveLocked(ctx)
	p.mu.Unlock()

	res.Duration = time.Since(start)
	p.metrics.RecordReplenishRun(origin, "completed", res.Duration.Seconds())
	log.Info("replenishment finished",
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"duplicates", res.Duplicates,
		"pool_size", p.store.Len(origin),
		"elapsed", res.Duration)
	return res
}

// insert adds c unless its token is already pooled, persisting on success.
func (p *Pool) insert(ctx context.Context, origin string, c domain.Credential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store.Contains(origin, c.Token) {
		return false
	}
	p.store.Insert(origin, c)
	p.saveLocked(ctx)
	return true
}

// pacing returns the delay before the next fetch attempt.
func (p *Pool) pacing() time.Duration {
	d := p.cfg.PacingBase
	if p.cfg.PacingJitter > 0 {
		d += time.Duration(p.jitter(int64(p.cfg.PacingJitter)))
	}
	return d
}

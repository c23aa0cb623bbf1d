package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

var testOrigins = domain.Origins{
	{Key: "co.uk", BaseURL: "https://www.vinted.co.uk"},
	{Key: "com", BaseURL: "https://www.vinted.com"},
}

var errFetch = errors.New("landing page returned 503")

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeFetcher hands out tokens from fn, or sequential unique tokens.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (string, error)

	// started is signalled on every call when non-nil; release gates
	// each call when non-nil.
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchToken(ctx context.Context, origin string) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.fn != nil {
		return f.fn(call)
	}
	return fmt.Sprintf("eyJ-%s-%03d", origin, call), nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memPersist records every save.
type memPersist struct {
	mu      sync.Mutex
	data    map[string][]domain.Credential
	saves   int
	loadErr error
	saveErr error
}

func (m *memPersist) Load(ctx context.Context) (map[string][]domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string][]domain.Credential, len(m.data))
	for k, v := range m.data {
		out[k] = append([]domain.Credential(nil), v...)
	}
	return out, nil
}

func (m *memPersist) Save(ctx context.Context, pool map[string][]domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = pool
	return nil
}

func (m *memPersist) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memPersist) Stored(origin string) []domain.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[origin]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPool builds a pool on a fake clock. Pacing advances the clock
// instead of sleeping, and jitter is zero, so fetched credentials are
// exactly PacingBase apart.
func newTestPool(t *testing.T, persist Store, fetcher TokenFetcher) (*Pool, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	p := NewPool(PoolConfig{
		Origins:      testOrigins,
		PacingBase:   500 * time.Millisecond,
		PacingJitter: time.Second,
		Logger:       quietLogger(),
	}, persist, fetcher)
	p.now = clock.Now
	p.sleep = func(ctx context.Context, d time.Duration) error {
		clock.Advance(d)
		return ctx.Err()
	}
	p.jitter = func(int64) int64 { return 0 }
	return p, clock
}

// seed inserts credentials created at now-age for each token, oldest last.
func seed(p *Pool, origin string, now time.Time, lifetime time.Duration, tokens ...string) {
	for i, tok := range tokens {
		created := now.Add(-time.Duration(i+1) * time.Second)
		p.store.Insert(origin, domain.NewCredential(tok, created, lifetime))
	}
}

func tokensOf(creds []domain.Credential) []string {
	out := make([]string, len(creds))
	for i, c := range creds {
		out[i] = c.Token
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// benchPool returns a full pool whose credentials outlive the benchmark,
// so Acquire and Draw never trigger a replenishment.
func benchPool(b *testing.B) *Pool {
	b.Helper()
	p := NewPool(PoolConfig{Origins: testOrigins, Logger: quietLogger()}, nil, &fakeFetcher{})
	now := time.Now()
	for _, origin := range testOrigins.Keys() {
		for i := 0; i < domain.DefaultMaxCapacity; i++ {
			tok := fmt.Sprintf("eyJ-%s-%02d", origin, i)
			p.store.Insert(origin, domain.NewCredential(tok, now.Add(-time.Duration(i)*time.Second), time.Hour))
		}
	}
	return p
}

func BenchmarkAcquire(b *testing.B) {
	p := benchPool(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := p.Acquire(ctx, "co.uk", false); err != nil {
				b.Errorf("Acquire: %v", err)
				return
			}
		}
	})
}

func BenchmarkDraw(b *testing.B) {
	p := benchPool(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := p.Draw(ctx, "com"); err != nil {
				b.Errorf("Draw: %v", err)
				return
			}
		}
	})
}

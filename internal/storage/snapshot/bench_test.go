package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

func benchPool(perOrigin int) map[string][]domain.Credential {
	pool := make(map[string][]domain.Credential, 2)
	for _, origin := range []string{"co.uk", "com"} {
		creds := make([]domain.Credential, perOrigin)
		for i := range creds {
			created := int64(1_700_000_000_000 + i*1000)
			creds[i] = domain.Credential{
				Token:     fmt.Sprintf("eyJhbGciOiJIUzI1NiJ9.%s.%06d", origin, i),
				CreatedAt: created,
				ExpiresAt: created + 600_000,
			}
		}
		pool[origin] = creds
	}
	return pool
}

func benchStore(b *testing.B, sealed bool) *FileStore {
	b.Helper()
	cfg := Config{Path: filepath.Join(b.TempDir(), "cookies.json")}
	if sealed {
		s, err := NewSealer("bench-passphrase", CipherAESGCM)
		if err != nil {
			b.Fatalf("NewSealer: %v", err)
		}
		cfg.Sealer = s
	}
	store, err := NewFileStore(cfg)
	if err != nil {
		b.Fatalf("NewFileStore: %v", err)
	}
	return store
}

// BenchmarkSave measures one full snapshot write at pool sizes around
// the default capacity.
func BenchmarkSave(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{1, 20, 200} {
		for _, sealed := range []bool{false, true} {
			b.Run(fmt.Sprintf("creds_%d/sealed_%v", size, sealed), func(b *testing.B) {
				store := benchStore(b, sealed)
				pool := benchPool(size)

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := store.Save(ctx, pool); err != nil {
						b.Fatalf("Save: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	ctx := context.Background()
	for _, sealed := range []bool{false, true} {
		b.Run(fmt.Sprintf("sealed_%v", sealed), func(b *testing.B) {
			store := benchStore(b, sealed)
			if err := store.Save(ctx, benchPool(20)); err != nil {
				b.Fatalf("Save: %v", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := store.Load(ctx); err != nil {
					b.Fatalf("Load: %v", err)
				}
			}
		})
	}
}

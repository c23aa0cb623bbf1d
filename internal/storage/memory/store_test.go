package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

func TestStore_PerOriginIsolation(t *testing.T) {
	s := New(5)
	s.Insert("com", cred("a", 100))
	s.Insert("co.uk", cred("a", 100))
	s.Insert("co.uk", cred("b", 200))

	if s.Len("com") != 1 || s.Len("co.uk") != 2 {
		t.Errorf("Len = %d/%d, want 1/2", s.Len("com"), s.Len("co.uk"))
	}
	if !s.Remove("com", "a") {
		t.Error("Remove(com, a) should succeed")
	}
	if !s.Contains("co.uk", "a") {
		t.Error("removing from one origin must not affect another")
	}
	if s.Remove("fr", "a") {
		t.Error("Remove on unknown origin should report false")
	}
	if got := s.Origins(); len(got) != 2 || got[0] != "co.uk" {
		t.Errorf("Origins() = %v", got)
	}
}

func TestStore_ValidUnknownOrigin(t *testing.T) {
	s := New(5)
	got := s.Valid("nowhere", time.Now())
	if got == nil || len(got) != 0 {
		t.Errorf("Valid(unknown) = %v, want empty non-nil slice", got)
	}
}

func TestStore_ReplaceNormalizes(t *testing.T) {
	s := New(2)
	s.Insert("stale", cred("x", 1))

	s.Replace(map[string][]domain.Credential{
		"com": {cred("old", 100), cred("new", 300), cred("mid", 200), cred("new", 999)},
	})

	if s.Len("stale") != 0 {
		t.Error("Replace should discard previous contents")
	}
	items := s.All()["com"]
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (capacity)", len(items))
	}
	if items[0].Token != "new" || items[1].Token != "mid" {
		t.Errorf("items = %+v, want [new mid]", items)
	}
	if items[0].CreatedAt != 300 {
		t.Error("first occurrence of a duplicated token should win")
	}
}

func TestStore_AllIsACopy(t *testing.T) {
	s := New(5)
	s.Insert("com", cred("a", 100))

	all := s.All()
	all["com"][0].Token = "mutated"

	if !s.Contains("com", "a") || s.Contains("com", "mutated") {
		t.Error("All() must return a copy")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(20)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tok := string(rune('a'+g)) + string(rune('a'+i%26))
				s.Insert("com", cred(tok, int64(i)))
				_ = s.Valid("com", time.UnixMilli(0))
				s.Remove("com", tok)
			}
		}(g)
	}
	wg.Wait()

	if s.Len("com") > 20 {
		t.Errorf("Len() = %d exceeds capacity", s.Len("com"))
	}
}

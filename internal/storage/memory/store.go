package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// Store holds one List per origin key.
type Store struct {
	mu       sync.RWMutex
	lists    map[string]*List
	capacity int
}

// New creates an empty store whose lists hold at most capacity credentials.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = domain.DefaultMaxCapacity
	}
	return &Store{
		lists:    make(map[string]*List),
		capacity: capacity,
	}
}

// list returns the origin's list, creating it if needed. Caller holds mu.
func (s *Store) list(origin string) *List {
	l, ok := s.lists[origin]
	if !ok {
		l = NewList(s.capacity)
		s.lists[origin] = l
	}
	return l
}

// Insert adds c to the origin's list. See List.Insert.
func (s *Store) Insert(origin string, c domain.Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(origin).Insert(c)
}

// Remove deletes token from the origin's list.
func (s *Store) Remove(origin, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[origin]
	if !ok {
		return false
	}
	return l.Remove(token)
}

// PruneExpired drops the origin's credentials that are invalid at now.
func (s *Store) PruneExpired(origin string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[origin]
	if !ok {
		return 0
	}
	return l.PruneExpired(now)
}

// Valid returns the origin's credentials valid at now, newest-first.
func (s *Store) Valid(origin string, now time.Time) []domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[origin]
	if !ok {
		return []domain.Credential{}
	}
	return l.Valid(now)
}

// Len returns the number of tracked credentials for origin.
func (s *Store) Len(origin string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.lists[origin]; ok {
		return l.Len()
	}
	return 0
}

// Contains reports whether token is tracked for origin.
func (s *Store) Contains(origin, token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.lists[origin]; ok {
		return l.Contains(token)
	}
	return false
}

// All returns a deep copy of every list keyed by origin.
func (s *Store) All() map[string][]domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.Credential, len(s.lists))
	for origin, l := range s.lists {
		out[origin] = l.Items()
	}
	return out
}

// Origins returns the known origin keys, sorted.
func (s *Store) Origins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.lists))
	for k := range s.lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Replace discards the current contents and loads data. Entries go
// through Insert, so ordering, uniqueness and capacity hold even for
// a hand-edited snapshot.
func (s *Store) Replace(data map[string][]domain.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = make(map[string]*List, len(data))
	for origin, creds := range data {
		l := s.list(origin)
		for _, c := range creds {
			l.Insert(c)
		}
	}
}

package memory

import (
	"sort"
	"time"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// List is a bounded, newest-first sequence of unique credentials.
// The zero value is not usable; create lists with NewList.
type List struct {
	items    []domain.Credential
	tokens   map[string]struct{}
	capacity int
}

// NewList creates an empty list holding at most capacity credentials.
func NewList(capacity int) *List {
	if capacity <= 0 {
		capacity = domain.DefaultMaxCapacity
	}
	return &List{
		items:    make([]domain.Credential, 0, capacity+1),
		tokens:   make(map[string]struct{}, capacity+1),
		capacity: capacity,
	}
}

// Len returns the number of tracked credentials, valid or not.
func (l *List) Len() int {
	return len(l.items)
}

// Capacity returns the maximum length of the list.
func (l *List) Capacity() int {
	return l.capacity
}

// Contains reports whether token is tracked.
func (l *List) Contains(token string) bool {
	_, ok := l.tokens[token]
	return ok
}

// Insert places c at its creation-time position and trims the oldest
// entries beyond capacity. Duplicate tokens are ignored.
// It reports whether c is in the list afterwards.
func (l *List) Insert(c domain.Credential) bool {
	if c.Token == "" || l.Contains(c.Token) {
		return false
	}

	// First index whose credential is strictly older than c; equal
	// timestamps keep insertion order (earlier insert stays first).
	pos := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].CreatedAt < c.CreatedAt
	})

	l.items = append(l.items, domain.Credential{})
	copy(l.items[pos+1:], l.items[pos:])
	l.items[pos] = c
	l.tokens[c.Token] = struct{}{}

	for len(l.items) > l.capacity {
		last := l.items[len(l.items)-1]
		delete(l.tokens, last.Token)
		l.items = l.items[:len(l.items)-1]
	}

	return l.Contains(c.Token)
}

// Remove deletes the credential with the given token.
// It reports whether anything was removed.
func (l *List) Remove(token string) bool {
	if !l.Contains(token) {
		return false
	}
	for i, c := range l.items {
		if c.Token == token {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	delete(l.tokens, token)
	return true
}

// PruneExpired removes every credential that is no longer valid at now
// and returns how many were removed.
func (l *List) PruneExpired(now time.Time) int {
	kept := l.items[:0]
	removed := 0
	for _, c := range l.items {
		if c.IsValidAt(now) {
			kept = append(kept, c)
			continue
		}
		delete(l.tokens, c.Token)
		removed++
	}
	// Clear the tail so dropped tokens are not retained by the backing array.
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = domain.Credential{}
	}
	l.items = kept
	return removed
}

// Valid returns a copy of the credentials valid at now, newest-first.
func (l *List) Valid(now time.Time) []domain.Credential {
	out := make([]domain.Credential, 0, len(l.items))
	for _, c := range l.items {
		if c.IsValidAt(now) {
			out = append(out, c)
		}
	}
	return out
}

// Items returns a copy of all tracked credentials, newest-first.
func (l *List) Items() []domain.Credential {
	out := make([]domain.Credential, len(l.items))
	copy(out, l.items)
	return out
}

// Package trust keeps the usernames whose badges show the trusted state
// instead of a probability.
package trust

import (
	"context"
	"strings"
	"sync"
)

// Persister stores the trusted list after a change.
type Persister interface {
	SaveTrusted(ctx context.Context, names []string) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, names []string) error

func (f PersisterFunc) SaveTrusted(ctx context.Context, names []string) error { return f(ctx, names) }

// Set is a case-insensitive username set that remembers the spelling
// each name was added with. Safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	names []string
	index map[string]int
}

func New(names []string) *Set {
	s := &Set{index: make(map[string]int)}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func fold(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Contains reports whether name is trusted, ignoring case.
func (s *Set) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[fold(name)]
	return ok
}

// Add reports whether name was added; blank or present names are not.
func (s *Set) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(name)
}

func (s *Set) add(name string) bool {
	name = strings.TrimSpace(name)
	key := fold(name)
	if key == "" {
		return false
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.names)
	s.names = append(s.names, name)
	return true
}

// Remove reports whether name was present.
func (s *Set) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(name)
}

func (s *Set) remove(name string) bool {
	key := fold(name)
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.names = append(s.names[:i], s.names[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.names); j++ {
		s.index[fold(s.names[j])] = j
	}
	return true
}

// Toggle flips membership and returns whether name is now trusted.
func (s *Set) Toggle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remove(name) {
		return false
	}
	return s.add(name)
}

// List returns the names in insertion order.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

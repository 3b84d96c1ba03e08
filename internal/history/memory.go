// Package history holds the local search history backends.
package history

import (
	"context"
	"strings"
	"sync"

	"movie-discovery-search-service/internal/models"
)

// MemoryStore is a bounded, most-recent-first list kept in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	max     int
	entries []string
}

// NewMemoryStore creates a store retaining at most maxEntries queries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries < 1 {
		maxEntries = models.DefaultHistoryLimit
	}
	return &MemoryStore{max: maxEntries}
}

// Save moves query to the front, dropping the oldest entry past the bound.
func (s *MemoryStore) Save(_ context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = remove(s.entries, query)
	s.entries = append([]string{query}, s.entries...)
	if len(s.entries) > s.max {
		s.entries = s.entries[:s.max]
	}
	return nil
}

// List returns up to limit queries, most recent first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	copy(out, s.entries[:n])
	return out, nil
}

// Remove deletes query if present.
func (s *MemoryStore) Remove(_ context.Context, query string) error {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = remove(s.entries, query)
	return nil
}

// Clear deletes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// MemoryStores hands out one MemoryStore per owner.
type MemoryStores struct {
	mu      sync.Mutex
	max     int
	byOwner map[string]*MemoryStore
}

// NewMemoryStores creates an empty per-owner registry.
func NewMemoryStores(maxEntries int) *MemoryStores {
	return &MemoryStores{max: maxEntries, byOwner: make(map[string]*MemoryStore)}
}

// For returns the store for owner, creating it on first use.
func (m *MemoryStores) For(owner string) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byOwner[owner]
	if !ok {
		s = NewMemoryStore(m.max)
		m.byOwner[owner] = s
	}
	return s
}

func remove(entries []string, query string) []string {
	out := entries[:0:0]
	for _, e := range entries {
		if e != query {
			out = append(out, e)
		}
	}
	return out
}

package catalog

import (
	"context"
	"fmt"
	"sync"

	"bundlelib/pkg/models"
)

// MemoryStore is an in-process catalog. It evaluates MatchStrategy.Matches
// directly, so it doubles as the reference the SQL backends are checked
// against.
type MemoryStore struct {
	mu      sync.RWMutex
	match   MatchStrategy
	entries []models.CatalogEntry
	nextID  int64
}

func NewMemoryStore(match MatchStrategy, seed ...models.Book) *MemoryStore {
	s := &MemoryStore{match: match, nextID: 1}
	for _, b := range seed {
		s.entries = append(s.entries, models.CatalogEntry{ID: s.nextID, Title: b.Title, Bundle: b.Bundle})
		s.nextID++
	}
	return s
}

func (s *MemoryStore) Match() MatchStrategy { return s.match }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) FindByBaseName(_ context.Context, base string) (*models.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if s.match.Matches(e.Title, base) {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Insert(_ context.Context, title, bundle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfTitle(title) >= 0 {
		return fmt.Errorf("insert %q: %w", title, ErrDuplicateTitle)
	}
	s.entries = append(s.entries, models.CatalogEntry{ID: s.nextID, Title: title, Bundle: bundle})
	s.nextID++
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, title, bundle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		if j := s.indexOfTitle(title); j >= 0 && j != i {
			return fmt.Errorf("update %d: %w", id, ErrDuplicateTitle)
		}
		s.entries[i].Title = title
		s.entries[i].Bundle = bundle
		return nil
	}
	return fmt.Errorf("update %d: %w", id, ErrNotFound)
}

func (s *MemoryStore) List(_ context.Context) ([]models.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CatalogEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) indexOfTitle(title string) int {
	for i, e := range s.entries {
		if e.Title == title {
			return i
		}
	}
	return -1
}

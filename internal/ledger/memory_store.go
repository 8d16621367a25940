package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"fairaudit/internal/types"
)

// InMemoryStore is a Store backed by a slice. Used when no database path is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	entries []types.LedgerEntry
	reports map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, entry types.LedgerEntry, report []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[entry.EvaluationID]; exists {
		return fmt.Errorf("evaluation %s already recorded", entry.EvaluationID)
	}
	s.entries = append(s.entries, entry)
	s.reports[entry.EvaluationID] = slices.Clone(report)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (types.LedgerEntry, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.EvaluationID == id {
			return e, slices.Clone(s.reports[id]), nil
		}
	}
	return types.LedgerEntry{}, nil, ErrNotFound
}

// List returns the newest entries first.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]types.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit = clampLimit(limit)
	out := make([]types.LedgerEntry, 0, min(limit, len(s.entries)))
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

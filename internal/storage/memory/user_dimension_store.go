package memory

import (
	"context"
	"sync"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// UserDimensionStore is an in-memory implementation of storage.UserDimensionStore.
type UserDimensionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.UserDimension // keyed by user_id
}

// NewUserDimensionStore creates a new in-memory user dimension store.
func NewUserDimensionStore() *UserDimensionStore {
	return &UserDimensionStore{data: make(map[string]*domain.UserDimension)}
}

// Compile-time interface check.
var _ storage.UserDimensionStore = (*UserDimensionStore)(nil)

// UpsertUsers inserts or replaces user dimensions by user_id.
func (s *UserDimensionStore) UpsertUsers(_ context.Context, users []*domain.UserDimension) error {
	for _, u := range users {
		if u == nil || u.UserID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		cp := *u
		s.data[u.UserID] = &cp
	}
	return nil
}

// GetCountries resolves user ids to countries. Missing ids are absent from
// the result.
func (s *UserDimensionStore) GetCountries(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if u, exists := s.data[id]; exists {
			out[id] = u.Country
		}
	}
	return out, nil
}

package memory

import (
	"context"
	"sync"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// CatalogStore is an in-memory implementation of storage.CatalogStore.
type CatalogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Product // keyed by product_id
}

// NewCatalogStore creates a new in-memory catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{data: make(map[string]*domain.Product)}
}

// Compile-time interface check.
var _ storage.CatalogStore = (*CatalogStore)(nil)

// UpsertProducts inserts or replaces catalog entries by product_id.
func (s *CatalogStore) UpsertProducts(_ context.Context, products []*domain.Product) error {
	for _, p := range products {
		if p == nil || p.ProductID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		cp := *p
		s.data[p.ProductID] = &cp
	}
	return nil
}

// GetProduct retrieves one entry. Returns ErrNotFound if not exists.
func (s *CatalogStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[productID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// GetCategories resolves product ids to categories. Missing ids are absent
// from the result.
func (s *CatalogStore) GetCategories(_ context.Context, productIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(productIDs))
	for _, id := range productIDs {
		if p, exists := s.data[id]; exists {
			out[id] = p.Category
		}
	}
	return out, nil
}

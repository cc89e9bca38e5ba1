package postgres

import (
	"context"
	"fmt"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// CatalogStore implements storage.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool *Pool
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CatalogStore = (*CatalogStore)(nil)

// UpsertProducts inserts or replaces catalog entries by product_id. The whole
// batch applies atomically.
func (s *CatalogStore) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if p == nil || p.ProductID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO product_catalog (product_id, category, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (product_id) DO UPDATE
		SET category = EXCLUDED.category, updated_at = now()
	`

	for _, p := range products {
		if _, err := tx.Exec(ctx, query, p.ProductID, p.Category); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetProduct retrieves one entry. Returns ErrNotFound if not exists.
func (s *CatalogStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `
		SELECT product_id, category
		FROM product_catalog
		WHERE product_id = $1
	`

	var p domain.Product
	err := s.pool.QueryRow(ctx, query, productID).Scan(&p.ProductID, &p.Category)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetCategories resolves product ids to categories. Missing ids are absent
// from the result.
func (s *CatalogStore) GetCategories(ctx context.Context, productIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT product_id, category
		FROM product_catalog
		WHERE product_id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, category string
		if err := rows.Scan(&id, &category); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		out[id] = category
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// UserDimensionStore implements storage.UserDimensionStore using PostgreSQL.
type UserDimensionStore struct {
	pool *Pool
}

// NewUserDimensionStore creates a new UserDimensionStore.
func NewUserDimensionStore(pool *Pool) *UserDimensionStore {
	return &UserDimensionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserDimensionStore = (*UserDimensionStore)(nil)

// UpsertUsers inserts or replaces user dimensions by user_id. The whole batch
// applies atomically.
func (s *UserDimensionStore) UpsertUsers(ctx context.Context, users []*domain.UserDimension) error {
	if len(users) == 0 {
		return nil
	}
	for _, u := range users {
		if u == nil || u.UserID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO user_dimensions (user_id, country, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET country = EXCLUDED.country, updated_at = now()
	`

	for _, u := range users {
		if _, err := tx.Exec(ctx, query, u.UserID, u.Country); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetCountries resolves user ids to countries. Missing ids are absent from
// the result.
func (s *UserDimensionStore) GetCountries(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT user_id, country
		FROM user_dimensions
		WHERE user_id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, country string
		if err := rows.Scan(&id, &country); err != nil {
			return nil, fmt.Errorf("scan country row: %w", err)
		}
		out[id] = country
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate country rows: %w", err)
	}
	return out, nil
}

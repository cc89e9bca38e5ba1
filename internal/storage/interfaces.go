package storage

import (
	"context"

	"ranklab/internal/domain"
)

// ImpressionStore provides access to the recs_impressions warehouse table.
// Impressions are append-only events; the evaluation engine reads a window
// of them and recomputes everything in process.
type ImpressionStore interface {
	// InsertImpressions appends a batch of impression events.
	InsertImpressions(ctx context.Context, impressions []*domain.Impression) error

	// GetImpressions retrieves every impression inside the window, ordered
	// by list_id, event_time, position so list rebuilds see rows in
	// first-seen order. An empty result with a nil error means the window
	// holds no data.
	GetImpressions(ctx context.Context, w domain.Window) ([]*domain.Impression, error)

	// GetFilterValues retrieves the distinct surfaces and countries present
	// in the window, sorted ascending.
	GetFilterValues(ctx context.Context, w domain.Window) (*domain.FilterValues, error)
}

// CatalogStore provides access to the product_catalog dimension table.
type CatalogStore interface {
	// UpsertProducts inserts or replaces catalog entries by product_id.
	UpsertProducts(ctx context.Context, products []*domain.Product) error

	// GetProduct retrieves one entry. Returns ErrNotFound if not exists.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// GetCategories resolves product ids to categories in one call. Missing
	// ids are simply absent from the result, never an error.
	GetCategories(ctx context.Context, productIDs []string) (map[string]string, error)
}

// UserDimensionStore provides access to the user_dimensions table.
type UserDimensionStore interface {
	// UpsertUsers inserts or replaces user dimensions by user_id.
	UpsertUsers(ctx context.Context, users []*domain.UserDimension) error

	// GetCountries resolves user ids to countries in one call. Missing ids
	// are absent from the result.
	GetCountries(ctx context.Context, userIDs []string) (map[string]string, error)
}

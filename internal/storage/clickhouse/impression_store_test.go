package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

func TestImpressionStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewImpressionStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertImpressions(ctx, nil)
	assert.NoError(t, err)

	eventMs := time.Now().UTC().Add(-1 * time.Hour).UnixMilli()
	batch := []*domain.Impression{
		{
			ListID:          "list-1",
			UserID:          "u1",
			ProductID:       "p2",
			Position:        2,
			Clicked:         true,
			Purchased:       false,
			AttributedValue: 0,
			EventTimeMs:     eventMs,
			Surface:         "home_feed",
			Module:          "recs_carousel",
			Reranker:        "v2",
			CGSource:        "covisit",
			Category:        "electronics",
			Country:         "US",
			Segment:         domain.SegmentReturning,
		},
		{
			ListID:          "list-1",
			UserID:          "u1",
			ProductID:       "p1",
			Position:        1,
			Purchased:       true,
			AttributedValue: 49.99,
			EventTimeMs:     eventMs,
			Surface:         "home_feed",
			Module:          "recs_carousel",
			Reranker:        "v2",
			CGSource:        "covisit",
			Category:        "apparel",
			Country:         "US",
			Segment:         domain.SegmentReturning,
		},
	}

	err = store.InsertImpressions(ctx, batch)
	require.NoError(t, err)

	got, err := store.GetImpressions(ctx, domain.Window{DaysBack: 7})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by position within the list
	assert.Equal(t, "p1", got[0].ProductID)
	assert.Equal(t, 1, got[0].Position)
	assert.True(t, got[0].Purchased)
	assert.Equal(t, 49.99, got[0].AttributedValue)
	assert.Equal(t, eventMs, got[0].EventTimeMs)
	assert.Equal(t, "apparel", got[0].Category)
	assert.Equal(t, domain.SegmentReturning, got[0].Segment)

	assert.Equal(t, "p2", got[1].ProductID)
	assert.True(t, got[1].Clicked)
	assert.False(t, got[1].Purchased)
}

func TestImpressionStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewImpressionStore(conn)
	ctx := context.Background()

	err := store.InsertImpressions(ctx, []*domain.Impression{{ListID: ""}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestImpressionStore_WindowFilters(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewImpressionStore(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	batch := []*domain.Impression{
		{ListID: "old", ProductID: "p1", Position: 1, EventTimeMs: now.Add(-10 * 24 * time.Hour).UnixMilli(), Surface: "home_feed", Country: "US"},
		{ListID: "fresh-us", ProductID: "p2", Position: 1, EventTimeMs: now.Add(-1 * time.Hour).UnixMilli(), Surface: "home_feed", Country: "US"},
		{ListID: "fresh-de", ProductID: "p3", Position: 1, EventTimeMs: now.Add(-2 * time.Hour).UnixMilli(), Surface: "search", Country: "DE"},
	}
	require.NoError(t, store.InsertImpressions(ctx, batch))

	// Time cutoff excludes the old list
	got, err := store.GetImpressions(ctx, domain.Window{DaysBack: 7})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// DaysBack 0 means no cutoff
	got, err = store.GetImpressions(ctx, domain.Window{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Surface filter
	got, err = store.GetImpressions(ctx, domain.Window{DaysBack: 7, Surface: "search"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh-de", got[0].ListID)

	// Country filter
	got, err = store.GetImpressions(ctx, domain.Window{DaysBack: 7, Country: "US"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh-us", got[0].ListID)
}

func TestImpressionStore_Ordering(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewImpressionStore(conn)
	ctx := context.Background()

	eventMs := time.Now().UTC().Add(-1 * time.Hour).UnixMilli()
	// Inserted deliberately out of order
	batch := []*domain.Impression{
		{ListID: "list-b", ProductID: "p4", Position: 1, EventTimeMs: eventMs},
		{ListID: "list-a", ProductID: "p3", Position: 3, EventTimeMs: eventMs},
		{ListID: "list-a", ProductID: "p1", Position: 1, EventTimeMs: eventMs},
		{ListID: "list-a", ProductID: "p2", Position: 2, EventTimeMs: eventMs},
	}
	require.NoError(t, store.InsertImpressions(ctx, batch))

	got, err := store.GetImpressions(ctx, domain.Window{DaysBack: 1})
	require.NoError(t, err)
	require.Len(t, got, 4)

	wantOrder := []string{"p1", "p2", "p3", "p4"}
	for i, want := range wantOrder {
		assert.Equal(t, want, got[i].ProductID, "row %d", i)
	}
}

func TestImpressionStore_GetFilterValues(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewImpressionStore(conn)
	ctx := context.Background()

	eventMs := time.Now().UTC().Add(-1 * time.Hour).UnixMilli()
	batch := []*domain.Impression{
		{ListID: "l1", ProductID: "p1", Position: 1, EventTimeMs: eventMs, Surface: "search", Country: "US"},
		{ListID: "l2", ProductID: "p2", Position: 1, EventTimeMs: eventMs, Surface: "home_feed", Country: "DE"},
		{ListID: "l3", ProductID: "p3", Position: 1, EventTimeMs: eventMs, Surface: "home_feed", Country: "US"},
		{ListID: "l4", ProductID: "p4", Position: 1, EventTimeMs: eventMs, Surface: "", Country: ""},
	}
	require.NoError(t, store.InsertImpressions(ctx, batch))

	fv, err := store.GetFilterValues(ctx, domain.Window{DaysBack: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"home_feed", "search"}, fv.Surfaces)
	assert.Equal(t, []string{"DE", "US"}, fv.Countries)
}

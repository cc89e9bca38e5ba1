package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// ImpressionStore implements storage.ImpressionStore using ClickHouse.
type ImpressionStore struct {
	conn *Conn
}

// NewImpressionStore creates a new ImpressionStore.
func NewImpressionStore(conn *Conn) *ImpressionStore {
	return &ImpressionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ImpressionStore = (*ImpressionStore)(nil)

const impressionColumns = `list_id, user_id, product_id, position, clicked, purchased,
		attributed_value, event_time, surface, module, reranker, cg_source,
		category, country, segment`

// InsertImpressions appends a batch of impression events.
func (s *ImpressionStore) InsertImpressions(ctx context.Context, impressions []*domain.Impression) error {
	if len(impressions) == 0 {
		return nil
	}
	for _, im := range impressions {
		if im == nil || im.ListID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO recs_impressions (
		%s
		)
	`, impressionColumns))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, im := range impressions {
		err = batch.Append(
			im.ListID, im.UserID, im.ProductID, int32(im.Position),
			im.Clicked, im.Purchased, im.AttributedValue,
			time.UnixMilli(im.EventTimeMs).UTC(),
			im.Surface, im.Module, im.Reranker, im.CGSource,
			im.Category, im.Country, im.Segment,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetImpressions retrieves every impression inside the window, ordered by
// list_id, event_time, position.
func (s *ImpressionStore) GetImpressions(ctx context.Context, w domain.Window) ([]*domain.Impression, error) {
	where, args := windowConditions(w)
	query := fmt.Sprintf(`
		SELECT %s
		FROM recs_impressions
		%s
		ORDER BY list_id, event_time, position
	`, impressionColumns, where)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query impressions: %w", err)
	}
	defer rows.Close()

	return scanImpressions(rows)
}

// GetFilterValues retrieves the distinct surfaces and countries in the
// window, sorted ascending. Blank values are not reported.
func (s *ImpressionStore) GetFilterValues(ctx context.Context, w domain.Window) (*domain.FilterValues, error) {
	surfaces, err := s.distinctValues(ctx, "surface", w)
	if err != nil {
		return nil, fmt.Errorf("query distinct surfaces: %w", err)
	}
	countries, err := s.distinctValues(ctx, "country", w)
	if err != nil {
		return nil, fmt.Errorf("query distinct countries: %w", err)
	}
	return &domain.FilterValues{Surfaces: surfaces, Countries: countries}, nil
}

func (s *ImpressionStore) distinctValues(ctx context.Context, column string, w domain.Window) ([]string, error) {
	where, args := windowConditions(w)
	if where == "" {
		where = fmt.Sprintf("WHERE %s != ''", column)
	} else {
		where += fmt.Sprintf(" AND %s != ''", column)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM recs_impressions
		%s
		ORDER BY %s
	`, column, where, column)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct values: %w", err)
	}
	return values, nil
}

// windowConditions builds the WHERE clause for a query window. DaysBack <= 0
// means no time cutoff.
func windowConditions(w domain.Window) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if w.DaysBack > 0 {
		cutoff := time.Now().UTC().Add(-time.Duration(w.DaysBack) * 24 * time.Hour)
		conds = append(conds, "event_time >= ?")
		args = append(args, cutoff)
	}
	if w.Surface != "" {
		conds = append(conds, "surface = ?")
		args = append(args, w.Surface)
	}
	if w.Country != "" {
		conds = append(conds, "country = ?")
		args = append(args, w.Country)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// chRows abstracts driver.Rows for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanImpressions scans multiple rows.
func scanImpressions(rows chRows) ([]*domain.Impression, error) {
	var impressions []*domain.Impression

	for rows.Next() {
		var im domain.Impression
		var position int32
		var eventTime time.Time

		err := rows.Scan(
			&im.ListID, &im.UserID, &im.ProductID, &position,
			&im.Clicked, &im.Purchased, &im.AttributedValue,
			&eventTime,
			&im.Surface, &im.Module, &im.Reranker, &im.CGSource,
			&im.Category, &im.Country, &im.Segment,
		)
		if err != nil {
			return nil, fmt.Errorf("scan impression row: %w", err)
		}

		im.Position = int(position)
		im.EventTimeMs = eventTime.UnixMilli()
		impressions = append(impressions, &im)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impression rows: %w", err)
	}

	return impressions, nil
}

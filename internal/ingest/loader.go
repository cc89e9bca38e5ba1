// Package ingest loads JSONL exports into the warehouse. Catalog and user
// dimension files land in the relational stores first; impression events are
// then enriched against them and bulk-inserted, so every warehouse row is
// self-contained and the query path never joins.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"ranklab/internal/domain"
	"ranklab/internal/observability"
	"ranklab/internal/storage"
)

// maxLineBytes bounds a single JSONL line. Event lines are small; this is
// headroom, not a target.
const maxLineBytes = 1 << 20

// Loader handles batch ingestion of JSONL inputs.
type Loader struct {
	impressions storage.ImpressionStore
	catalog     storage.CatalogStore
	users       storage.UserDimensionStore
	batchSize   int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Options contains configuration for creating a Loader.
type Options struct {
	ImpressionStore    storage.ImpressionStore
	CatalogStore       storage.CatalogStore
	UserDimensionStore storage.UserDimensionStore
	BatchSize          int
	Logger             zerolog.Logger
	Metrics            *observability.Metrics // nil disables instrumentation
}

// NewLoader creates a new batch loader.
func NewLoader(opts Options) *Loader {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	return &Loader{
		impressions: opts.ImpressionStore,
		catalog:     opts.CatalogStore,
		users:       opts.UserDimensionStore,
		batchSize:   batchSize,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Result contains statistics from a load operation. A load that returns an
// error still reports the counts reached before the failure.
type Result struct {
	CatalogRows    int
	UserRows       int
	Events         int
	CategoryMisses int
	CountryMisses  int
	MalformedLines int
	Duration       time.Duration
}

// LoadCatalog reads product JSONL lines and upserts them into the catalog
// store in batches. Malformed lines are counted and skipped, never fatal.
func (l *Loader) LoadCatalog(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	result := &Result{}

	batch := make([]*domain.Product, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.catalog.UpsertProducts(ctx, batch); err != nil {
			return fmt.Errorf("upsert products: %w", err)
		}
		result.CatalogRows += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec CatalogRecord
		if err := json.Unmarshal(line, &rec); err != nil || !rec.Valid() {
			result.MalformedLines++
			l.countMalformed("catalog")
			continue
		}

		batch = append(batch, rec.Product())
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read catalog input: %w", err)
	}
	if err := flush(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	if l.metrics != nil {
		l.metrics.CatalogRows.Add(float64(result.CatalogRows))
	}
	l.logger.Info().
		Int("rows", result.CatalogRows).
		Int("malformed", result.MalformedLines).
		Dur("duration", result.Duration).
		Msg("catalog loaded")

	return result, nil
}

// LoadUsers reads user-dimension JSONL lines and upserts them in batches.
func (l *Loader) LoadUsers(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	result := &Result{}

	batch := make([]*domain.UserDimension, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.users.UpsertUsers(ctx, batch); err != nil {
			return fmt.Errorf("upsert users: %w", err)
		}
		result.UserRows += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec UserRecord
		if err := json.Unmarshal(line, &rec); err != nil || !rec.Valid() {
			result.MalformedLines++
			l.countMalformed("user")
			continue
		}

		batch = append(batch, rec.User())
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read user input: %w", err)
	}
	if err := flush(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	if l.metrics != nil {
		l.metrics.UserRows.Add(float64(result.UserRows))
	}
	l.logger.Info().
		Int("rows", result.UserRows).
		Int("malformed", result.MalformedLines).
		Dur("duration", result.Duration).
		Msg("user dimensions loaded")

	return result, nil
}

// LoadEvents reads impression-event JSONL lines, enriches category, country
// and segment per batch, and bulk-inserts the denormalized impressions.
// Malformed lines are counted and skipped; a store failure aborts the load
// with the counts reached so far.
func (l *Loader) LoadEvents(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	result := &Result{}

	batch := make([]*domain.Impression, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.enrich(ctx, batch, result); err != nil {
			return err
		}
		if err := l.impressions.InsertImpressions(ctx, batch); err != nil {
			return fmt.Errorf("insert impressions: %w", err)
		}
		result.Events += len(batch)
		l.logger.Debug().Int("events", result.Events).Msg("batch inserted")
		batch = batch[:0]
		return nil
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec EventRecord
		if err := json.Unmarshal(line, &rec); err != nil || !rec.Valid() {
			result.MalformedLines++
			l.countMalformed("event")
			continue
		}

		batch = append(batch, rec.Impression())
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read event input: %w", err)
	}
	if err := flush(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	if l.metrics != nil {
		l.metrics.EventsLoaded.Add(float64(result.Events))
	}
	l.logger.Info().
		Int("events", result.Events).
		Int("category_misses", result.CategoryMisses).
		Int("country_misses", result.CountryMisses).
		Int("malformed", result.MalformedLines).
		Dur("duration", result.Duration).
		Msg("events loaded")

	return result, nil
}

// enrich resolves categories and countries for one batch. Lookups that miss
// leave the unknown value in place and are counted; anonymous users are never
// looked up and never count as misses.
func (l *Loader) enrich(ctx context.Context, batch []*domain.Impression, result *Result) error {
	productSet := make(map[string]struct{})
	userSet := make(map[string]struct{})
	for _, im := range batch {
		productSet[im.ProductID] = struct{}{}
		if im.Segment == domain.SegmentReturning {
			userSet[im.UserID] = struct{}{}
		}
	}

	productIDs := make([]string, 0, len(productSet))
	for id := range productSet {
		productIDs = append(productIDs, id)
	}
	userIDs := make([]string, 0, len(userSet))
	for id := range userSet {
		userIDs = append(userIDs, id)
	}

	categories, err := l.catalog.GetCategories(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("get categories: %w", err)
	}
	countries, err := l.users.GetCountries(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("get countries: %w", err)
	}

	for _, im := range batch {
		if v, ok := categories[im.ProductID]; ok && v != "" {
			im.Category = v
		} else {
			result.CategoryMisses++
		}
		if im.Segment != domain.SegmentReturning {
			continue
		}
		if v, ok := countries[im.UserID]; ok && v != "" {
			im.Country = v
		} else {
			result.CountryMisses++
		}
	}
	return nil
}

func (l *Loader) countMalformed(kind string) {
	if l.metrics != nil {
		l.metrics.MalformedRecords.WithLabelValues(kind).Inc()
	}
}

// newLineScanner widens bufio's default token limit so long event lines do
// not abort a load.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

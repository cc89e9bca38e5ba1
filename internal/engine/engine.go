// Package engine binds the impression store to the scoring and aggregation
// layers and exposes the service's read operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"ranklab/internal/domain"
	"ranklab/internal/metrics"
	"ranklab/internal/observability"
	"ranklab/internal/opportunity"
	"ranklab/internal/ranking"
	"ranklab/internal/storage"
	"ranklab/internal/trend"
)

// Evaluation defaults and caps.
const (
	DefaultK        = 6
	DefaultDaysBack = 7
	MaxDaysBack     = 30

	DefaultMinSessions            = 100
	DefaultOpportunityMinSessions = 50

	DefaultTrendDaysBack = 30
	MaxTrendDaysBack     = 90

	DefaultSessionMinItems = 4
	DefaultSessionLimit    = 10
	MaxSessionLimit        = 50
)

// ErrUnknownDimension reports a dimension key outside the supported set.
var ErrUnknownDimension = errors.New("unknown dimension")

// Options for creating an Engine.
type Options struct {
	ImpressionStore storage.ImpressionStore

	// Evaluation parameters. K, Mode and the window defaults fall back to
	// package defaults when zero; the session minimums are used as
	// configured, 0 disables suppression.
	K                      int
	Mode                   domain.ScoreMode
	DaysBack               int
	TrendDaysBack          int
	MinSessions            int
	OpportunityMinSessions int
	UpliftFactor           float64
	Targets                []float64

	Logger  zerolog.Logger
	Metrics *observability.Metrics // nil disables instrumentation
}

// Engine answers evaluation queries against one impression store. All
// computation happens per query; nothing is cached or persisted.
type Engine struct {
	store storage.ImpressionStore

	k                      int
	mode                   domain.ScoreMode
	daysBack               int
	trendDaysBack          int
	minSessions            int
	opportunityMinSessions int
	model                  opportunity.Model

	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a new Engine.
func New(opts Options) *Engine {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	mode := opts.Mode
	if !mode.IsValid() {
		mode = domain.ScoreModeGraded
	}
	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	if daysBack > MaxDaysBack {
		daysBack = MaxDaysBack
	}
	trendDaysBack := opts.TrendDaysBack
	if trendDaysBack <= 0 {
		trendDaysBack = DefaultTrendDaysBack
	}
	if trendDaysBack > MaxTrendDaysBack {
		trendDaysBack = MaxTrendDaysBack
	}

	return &Engine{
		store:                  opts.ImpressionStore,
		k:                      k,
		mode:                   mode,
		daysBack:               daysBack,
		trendDaysBack:          trendDaysBack,
		minSessions:            opts.MinSessions,
		opportunityMinSessions: opts.OpportunityMinSessions,
		model:                  opportunity.NewModel(opts.UpliftFactor, opts.Targets),
		logger:                 opts.Logger,
		metrics:                opts.Metrics,
	}
}

// Query selects the window and scoring parameters for one operation.
// Zero values fall back to the engine's configured defaults.
type Query struct {
	DaysBack int
	Surface  string
	Country  string
	K        int
	Mode     domain.ScoreMode
}

// SnapshotResult pairs the ungrouped metrics with the window and scoring
// parameters that produced them.
type SnapshotResult struct {
	DaysBack int                    `json:"days_back"`
	Surface  string                 `json:"surface,omitempty"`
	Country  string                 `json:"country,omitempty"`
	K        int                    `json:"k"`
	Mode     domain.ScoreMode       `json:"mode"`
	Metrics  domain.SnapshotMetrics `json:"metrics"`
	Quality  domain.QualityStats    `json:"quality"`
}

// Snapshot computes the ungrouped funnel and ranking metrics for a window.
func (e *Engine) Snapshot(ctx context.Context, q Query) (*SnapshotResult, error) {
	defer e.observe("snapshot", time.Now())

	w := e.window(q, e.daysBack, MaxDaysBack)
	records, err := e.fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	k, mode := e.scoring(q)
	lists, quality := metrics.BuildLists(records)
	e.countScored(len(lists))

	e.logger.Debug().
		Int("days_back", w.DaysBack).
		Str("surface", w.Surface).
		Str("country", w.Country).
		Int("impressions", len(records)).
		Int("lists", len(lists)).
		Msg("snapshot computed")

	return &SnapshotResult{
		DaysBack: w.DaysBack,
		Surface:  w.Surface,
		Country:  w.Country,
		K:        k,
		Mode:     mode,
		Metrics:  metrics.Snapshot(lists, k, mode),
		Quality:  quality,
	}, nil
}

// Breakdown computes the per-group rollup for one dimension. minSessions <= 0
// falls back to the engine's configured threshold.
func (e *Engine) Breakdown(ctx context.Context, q Query, d domain.Dimension, minSessions int) (*domain.DimensionBreakdown, error) {
	defer e.observe("breakdown", time.Now())

	if !d.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, string(d))
	}
	if minSessions <= 0 {
		minSessions = e.minSessions
	}

	w := e.window(q, e.daysBack, MaxDaysBack)
	records, err := e.fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	k, mode := e.scoring(q)
	lists, quality := metrics.BuildLists(records)
	e.countScored(len(lists))

	b := metrics.BuildBreakdown(lists, d, k, mode, minSessions)
	b.Quality.Add(quality)
	e.countSuppressed(b.Quality.GroupsSuppressed)

	e.logger.Debug().
		Str("dimension", d.String()).
		Int("days_back", w.DaysBack).
		Int("lists", len(lists)).
		Int("groups", len(b.Groups)).
		Int("suppressed", b.Quality.GroupsSuppressed).
		Msg("breakdown computed")

	return &b, nil
}

// Opportunity estimates the GMV uplift available in each group of a
// dimension. uplift <= 0 and empty targets fall back to the engine's
// configured model.
func (e *Engine) Opportunity(ctx context.Context, q Query, d domain.Dimension, uplift float64, targets []float64) (*domain.OpportunityReport, error) {
	defer e.observe("opportunity", time.Now())

	if !d.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, string(d))
	}

	model := e.model
	if uplift > 0 || len(targets) > 0 {
		factor := model.UpliftFactor
		if uplift > 0 {
			factor = uplift
		}
		set := model.Targets
		if len(targets) > 0 {
			set = targets
		}
		model = opportunity.NewModel(factor, set)
	}

	w := e.window(q, e.daysBack, MaxDaysBack)
	records, err := e.fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	k, mode := e.scoring(q)
	lists, quality := metrics.BuildLists(records)
	e.countScored(len(lists))

	b := metrics.BuildBreakdown(lists, d, k, mode, e.opportunityMinSessions)
	b.Quality.Add(quality)
	e.countSuppressed(b.Quality.GroupsSuppressed)

	report := model.BuildReport(b, w.DaysBack)

	e.logger.Debug().
		Str("dimension", d.String()).
		Int("days_back", w.DaysBack).
		Int("groups", len(report.Groups)).
		Float64("total_to_median", report.TotalToMedian).
		Msg("opportunity computed")

	return &report, nil
}

// Trends computes the per-day series and its period-over-period summary.
// The window defaults and caps are wider than the interactive operations.
func (e *Engine) Trends(ctx context.Context, q Query) (*domain.TrendReport, error) {
	defer e.observe("trends", time.Now())

	w := e.window(q, e.trendDaysBack, MaxTrendDaysBack)
	records, err := e.fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	k, mode := e.scoring(q)
	series, quality := trend.BuildDaily(records, k, mode)
	for _, day := range series {
		e.countScored(day.Sessions)
	}

	e.logger.Debug().
		Int("days_back", w.DaysBack).
		Int("impressions", len(records)).
		Int("days", len(series)).
		Msg("trends computed")

	return &domain.TrendReport{
		DaysBack: w.DaysBack,
		Series:   series,
		Summary:  trend.Summarize(series),
		Quality:  quality,
	}, nil
}

// Sessions returns detail rows for recent sessions that contain at least one
// purchase, newest first. minItems filters out short lists; limit is capped.
// Item rows are truncated at the scoring cutoff.
func (e *Engine) Sessions(ctx context.Context, q Query, minItems, limit int) ([]domain.SessionDetail, error) {
	defer e.observe("sessions", time.Now())

	if minItems <= 0 {
		minItems = DefaultSessionMinItems
	}
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	if limit > MaxSessionLimit {
		limit = MaxSessionLimit
	}

	w := e.window(q, e.daysBack, MaxDaysBack)
	records, err := e.fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	k, mode := e.scoring(q)
	lists, _ := metrics.BuildLists(records)

	// Newest first, list id as tie-break for a stable order.
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].StartMs != lists[j].StartMs {
			return lists[i].StartMs > lists[j].StartMs
		}
		return lists[i].ID < lists[j].ID
	})

	details := make([]domain.SessionDetail, 0, limit)
	for _, l := range lists {
		if len(l.Items) < minItems {
			continue
		}
		detail := sessionDetail(l, k, mode)
		if detail.Purchases == 0 {
			continue
		}
		details = append(details, detail)
		if len(details) == limit {
			break
		}
	}

	e.logger.Debug().
		Int("days_back", w.DaysBack).
		Int("lists", len(lists)).
		Int("sessions", len(details)).
		Msg("sessions collected")

	return details, nil
}

// FilterOptions lists the distinct filterable values present in a window.
func (e *Engine) FilterOptions(ctx context.Context, q Query) (*domain.FilterValues, error) {
	defer e.observe("filters", time.Now())

	w := e.window(q, e.daysBack, MaxDaysBack)
	fv, err := e.store.GetFilterValues(ctx, w)
	if err != nil {
		e.countStoreError("filter_values")
		return nil, fmt.Errorf("get filter values: %w", err)
	}
	return fv, nil
}

// sessionDetail reduces one rebuilt list to an explorer row. Counters span
// the full list; the item rows are truncated at k.
func sessionDetail(l *metrics.List, k int, mode domain.ScoreMode) domain.SessionDetail {
	detail := domain.SessionDetail{
		ListID:          l.ID,
		StartTimeMs:     l.StartMs,
		Surface:         metrics.RepresentativeValue(l, domain.DimensionSurface),
		Country:         metrics.RepresentativeValue(l, domain.DimensionCountry),
		Segment:         metrics.RepresentativeValue(l, domain.DimensionSegment),
		PrimaryCategory: metrics.RepresentativeValue(l, domain.DimensionCategory),
		ItemCount:       len(l.Items),
		NDCG:            ranking.NDCG(l.Items, k, mode),
	}

	for _, rec := range l.Items {
		if rec.Clicked {
			detail.Clicks++
		}
		if rec.Purchased {
			detail.Purchases++
		}
		detail.GMV += rec.AttributedValue

		if len(detail.Items) < k {
			detail.Items = append(detail.Items, domain.SessionItem{
				Position:        rec.Position,
				ProductID:       rec.ProductID,
				Category:        rec.Category,
				Clicked:         rec.Clicked,
				Purchased:       rec.Purchased,
				AttributedValue: rec.AttributedValue,
			})
		}
	}
	return detail
}

// window normalizes a query window: default lookback when unset, capped at
// the operation's maximum.
func (e *Engine) window(q Query, defaultDays, maxDays int) domain.Window {
	days := q.DaysBack
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	return domain.Window{DaysBack: days, Surface: q.Surface, Country: q.Country}
}

// scoring resolves the cutoff and mode for one query.
func (e *Engine) scoring(q Query) (int, domain.ScoreMode) {
	k := q.K
	if k <= 0 {
		k = e.k
	}
	mode := q.Mode
	if !mode.IsValid() {
		mode = e.mode
	}
	return k, mode
}

// fetch materializes the window from the store. A store failure is the one
// explicit error path; an empty window is a valid result.
func (e *Engine) fetch(ctx context.Context, w domain.Window) ([]*domain.Impression, error) {
	records, err := e.store.GetImpressions(ctx, w)
	if err != nil {
		e.countStoreError("get_impressions")
		return nil, fmt.Errorf("get impressions: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ImpressionsFetched.Add(float64(len(records)))
	}
	return records, nil
}

func (e *Engine) observe(operation string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueriesTotal.WithLabelValues(operation).Inc()
	e.metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (e *Engine) countScored(n int) {
	if e.metrics != nil && n > 0 {
		e.metrics.ListsScored.Add(float64(n))
	}
}

func (e *Engine) countSuppressed(n int) {
	if e.metrics != nil && n > 0 {
		e.metrics.GroupsSuppressed.Add(float64(n))
	}
}

func (e *Engine) countStoreError(operation string) {
	if e.metrics != nil {
		e.metrics.StoreErrors.WithLabelValues("impressions", operation).Inc()
	}
}

package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ranklab/internal/domain"
	"ranklab/internal/engine"
	"ranklab/internal/storage/memory"
)

var reportNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// setupTestEngine seeds two days of impressions across two surfaces:
// a purchased home_feed list on the 14th, a clicked search list and an
// interactionless home_feed list on the 15th.
func setupTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ctx := context.Background()

	store := memory.NewImpressionStore().WithClock(func() time.Time { return reportNow })

	day1 := reportNow.Add(-26 * time.Hour).UnixMilli()
	day2 := reportNow.Add(-2 * time.Hour).UnixMilli()

	records := []*domain.Impression{
		{ListID: "a1", UserID: "u1", ProductID: "p1", Position: 1, Purchased: true,
			AttributedValue: 120.50, EventTimeMs: day1, Surface: "home_feed",
			Module: "recs_carousel", Reranker: "v2", CGSource: "covisit",
			Category: "electronics", Country: "US", Segment: domain.SegmentReturning},
		{ListID: "a1", UserID: "u1", ProductID: "p2", Position: 2, EventTimeMs: day1,
			Surface: "home_feed", Module: "recs_carousel", Reranker: "v2",
			CGSource: "covisit", Category: "toys", Country: "US",
			Segment: domain.SegmentReturning},
		{ListID: "a2", UserID: "u2", ProductID: "p3", Position: 1, Clicked: true,
			EventTimeMs: day2, Surface: "search", Module: "search_grid",
			Reranker: "v1", CGSource: "query", Category: "electronics",
			Country: "DE", Segment: domain.SegmentReturning},
		{ListID: "a2", UserID: "u2", ProductID: "p4", Position: 2, EventTimeMs: day2,
			Surface: "search", Module: "search_grid", Reranker: "v1",
			CGSource: "query", Category: "toys", Country: "DE",
			Segment: domain.SegmentReturning},
		{ListID: "a3", UserID: "0", ProductID: "p5", Position: 1, EventTimeMs: day2,
			Surface: "home_feed", Module: "recs_carousel", Reranker: "v2",
			CGSource: "covisit", Category: "toys", Country: "unknown",
			Segment: domain.SegmentAnonymous},
	}
	if err := store.InsertImpressions(ctx, records); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	return engine.New(engine.Options{ImpressionStore: store, Logger: zerolog.Nop()})
}

func fixedGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(setupTestEngine(t)).
		WithClock(func() time.Time { return reportNow }).
		WithRunID(func() string { return "run-1" })
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()

	first, err := fixedGenerator(t).Generate(ctx, engine.Query{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for run := 0; run < 3; run++ {
		report, err := fixedGenerator(t).Generate(ctx, engine.Query{})
		if err != nil {
			t.Fatalf("Run %d: Generate failed: %v", run, err)
		}

		if report.RunID != first.RunID {
			t.Errorf("Run %d: RunID mismatch", run)
		}
		if !report.GeneratedAt.Equal(first.GeneratedAt) {
			t.Errorf("Run %d: GeneratedAt mismatch: got %v, want %v",
				run, report.GeneratedAt, first.GeneratedAt)
		}
		if report.Snapshot != first.Snapshot {
			t.Errorf("Run %d: snapshot mismatch: got %+v, want %+v",
				run, report.Snapshot, first.Snapshot)
		}
		if len(report.Breakdowns) != len(first.Breakdowns) {
			t.Fatalf("Run %d: breakdown count mismatch", run)
		}
		for i := range report.Breakdowns {
			if report.Breakdowns[i].Dimension != first.Breakdowns[i].Dimension {
				t.Errorf("Run %d: Breakdowns[%d] dimension mismatch", run, i)
			}
			if len(report.Breakdowns[i].Groups) != len(first.Breakdowns[i].Groups) {
				t.Errorf("Run %d: Breakdowns[%d] group count mismatch", run, i)
			}
		}
	}
}

func TestGenerate_ContainsRequiredSections(t *testing.T) {
	ctx := context.Background()

	report, err := fixedGenerator(t).Generate(ctx, engine.Query{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.DaysBack != engine.DefaultDaysBack {
		t.Errorf("expected default window, got %d", report.DaysBack)
	}
	if report.K != engine.DefaultK || report.Mode != domain.ScoreModeGraded {
		t.Errorf("expected default scoring, got k=%d mode=%s", report.K, report.Mode)
	}
	if report.Snapshot.Sessions != 3 {
		t.Errorf("expected 3 sessions, got %d", report.Snapshot.Sessions)
	}
	if report.Snapshot.GMV != 120.50 {
		t.Errorf("expected gmv 120.50, got %f", report.Snapshot.GMV)
	}

	// One breakdown per dimension, in report order.
	dims := domain.Dimensions()
	if len(report.Breakdowns) != len(dims) {
		t.Fatalf("expected %d breakdowns, got %d", len(dims), len(report.Breakdowns))
	}
	for i, d := range dims {
		if report.Breakdowns[i].Dimension != d {
			t.Errorf("breakdown %d: expected %s, got %s", i, d, report.Breakdowns[i].Dimension)
		}
	}

	if report.Opportunity == nil || report.Opportunity.Dimension != domain.DimensionSurface {
		t.Fatalf("expected surface opportunity section, got %+v", report.Opportunity)
	}
	if report.Trends == nil || len(report.Trends.Series) != 2 {
		t.Fatalf("expected 2-day trend series, got %+v", report.Trends)
	}
}

func TestGenerate_Options(t *testing.T) {
	ctx := context.Background()

	generator := fixedGenerator(t).
		WithDimensions(domain.DimensionSurface).
		WithOpportunityDimension(domain.DimensionCountry)

	report, err := generator.Generate(ctx, engine.Query{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Breakdowns) != 1 || report.Breakdowns[0].Dimension != domain.DimensionSurface {
		t.Errorf("expected only the surface breakdown, got %+v", report.Breakdowns)
	}
	if report.Opportunity.Dimension != domain.DimensionCountry {
		t.Errorf("expected country opportunity, got %s", report.Opportunity.Dimension)
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	ctx := context.Background()

	report, err := fixedGenerator(t).Generate(ctx, engine.Query{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	requiredSections := []string{
		"# Ranking Evaluation Report",
		"Run: run-1",
		"Generated: 2024-03-15T12:00:00Z",
		"## Snapshot",
		"## Data Quality",
		"## Breakdown: surface",
		"## Breakdown: position_bucket",
		"## GMV Opportunity by surface",
		"## Trends",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing section: %s", section)
		}
	}

	if !strings.Contains(md, "| GMV | $120.50 |") {
		t.Error("Markdown missing formatted snapshot GMV")
	}
	if !strings.Contains(md, "Window: last 7 days | surface: all | country: all") {
		t.Error("Markdown missing window line")
	}
	if !strings.Contains(md, "| 2024-03-14 |") || !strings.Contains(md, "| 2024-03-15 |") {
		t.Error("Markdown missing trend rows")
	}
}

func TestRenderCSV_Format(t *testing.T) {
	breakdowns := []domain.DimensionBreakdown{
		{
			Dimension: domain.DimensionSurface,
			Groups: []domain.GroupMetrics{
				{Dimension: domain.DimensionSurface, Value: "search", Sessions: 10,
					Impressions: 40, Clicks: 4, Purchases: 1, CTR: 10, PTR: 2.5,
					AvgNDCG: 0.41, RecallClickAt10: 40, RecallPurchaseAt10: 100, GMV: 99.5},
				{Dimension: domain.DimensionSurface, Value: "home_feed", Sessions: 20,
					Impressions: 80, Clicks: 10, Purchases: 2, CTR: 12.5, PTR: 2.5,
					AvgNDCG: 0.52, RecallClickAt10: 55, RecallPurchaseAt10: 100, GMV: 240},
			},
		},
		{
			Dimension: domain.DimensionCategory,
			Groups: []domain.GroupMetrics{
				{Dimension: domain.DimensionCategory, Value: "kitchen, dining", Sessions: 5,
					Impressions: 15, AvgNDCG: 0.3, GMV: 10},
			},
		},
	}

	csv := RenderCSV(breakdowns)
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "dimension,value,sessions") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	// Breakdown order is preserved.
	if !strings.HasPrefix(lines[1], "surface,search,10,40,4,1,") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "surface,home_feed,20,") {
		t.Errorf("unexpected second row: %s", lines[2])
	}
	// Values containing separators are quoted.
	if !strings.HasPrefix(lines[3], `category,"kitchen, dining",5,`) {
		t.Errorf("unexpected third row: %s", lines[3])
	}
	if !strings.HasSuffix(lines[1], ",99.50") {
		t.Errorf("expected two-decimal gmv, got: %s", lines[1])
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{999.9, "$999.90"},
		{1000, "$1,000.00"},
		{1234567.891, "$1,234,567.89"},
		{-1234.5, "-$1,234.50"},
	}

	for _, tc := range cases {
		if got := formatCurrency(tc.in); got != tc.want {
			t.Errorf("formatCurrency(%v): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

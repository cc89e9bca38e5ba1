package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ranklab/internal/domain"
	"ranklab/internal/engine"
	"ranklab/internal/storage/memory"
)

var apiNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// imp builds one impression with fixed module-level dimensions.
func imp(listID, surface, country string, pos int, clicked, purchased bool, value float64, eventMs int64) *domain.Impression {
	return &domain.Impression{
		ListID:          listID,
		UserID:          "u-" + listID,
		ProductID:       fmt.Sprintf("%s-p%d", listID, pos),
		Position:        pos,
		Clicked:         clicked,
		Purchased:       purchased,
		AttributedValue: value,
		EventTimeMs:     eventMs,
		Surface:         surface,
		Module:          "recs_carousel",
		Reranker:        "v2",
		CGSource:        "covisit",
		Category:        "electronics",
		Country:         country,
		Segment:         domain.SegmentReturning,
	}
}

// newTestServer seeds two lists: l1 on home_feed/US with a purchase at
// position 1 (perfect ranking, four items), l2 on search/DE with two
// unengaged items a day earlier.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := memory.NewImpressionStore().WithClock(func() time.Time { return apiNow })

	day1 := apiNow.Add(-26 * time.Hour).UnixMilli()
	day2 := apiNow.Add(-2 * time.Hour).UnixMilli()
	records := []*domain.Impression{
		imp("l1", "home_feed", "US", 1, false, true, 50, day2),
		imp("l1", "home_feed", "US", 2, true, false, 0, day2),
		imp("l1", "home_feed", "US", 3, false, false, 0, day2),
		imp("l1", "home_feed", "US", 4, false, false, 0, day2),
		imp("l2", "search", "DE", 1, false, false, 0, day1),
		imp("l2", "search", "DE", 2, false, false, 0, day1),
	}
	if err := store.InsertImpressions(context.Background(), records); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	eng := engine.New(engine.Options{ImpressionStore: store, Logger: zerolog.Nop()})
	return NewServer(Options{Engine: eng, Logger: zerolog.Nop()})
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	return rec
}

func TestServer_Snapshot(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result engine.SnapshotResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Metrics.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", result.Metrics.Sessions)
	}
	if result.Metrics.Impressions != 6 {
		t.Errorf("expected 6 impressions, got %d", result.Metrics.Impressions)
	}
	if result.Metrics.GMV != 50 {
		t.Errorf("expected GMV 50, got %f", result.Metrics.GMV)
	}
	if result.K != engine.DefaultK {
		t.Errorf("expected k %d, got %d", engine.DefaultK, result.K)
	}
	if result.Mode != domain.ScoreModeGraded {
		t.Errorf("expected graded mode, got %s", result.Mode)
	}
	if result.DaysBack != engine.DefaultDaysBack {
		t.Errorf("expected days back %d, got %d", engine.DefaultDaysBack, result.DaysBack)
	}
}

func TestServer_Snapshot_Filtered(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/metrics?surface=search&k=3&mode=binary")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result engine.SnapshotResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Metrics.Sessions != 1 {
		t.Errorf("expected 1 session on search, got %d", result.Metrics.Sessions)
	}
	if result.Surface != "search" {
		t.Errorf("expected surface search, got %q", result.Surface)
	}
	if result.K != 3 {
		t.Errorf("expected k 3, got %d", result.K)
	}
	if result.Mode != domain.ScoreModeBinary {
		t.Errorf("expected binary mode, got %s", result.Mode)
	}
}

func TestServer_Snapshot_InvalidParams(t *testing.T) {
	srv := newTestServer(t)

	paths := []string{
		"/api/v1/metrics?k=-1",
		"/api/v1/metrics?k=200",
		"/api/v1/metrics?mode=fancy",
		"/api/v1/metrics?days_back=nope",
	}
	for _, path := range paths {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode error body: %v", path, err)
		}
		if body["error"] == "" {
			t.Errorf("%s: expected error message in body", path)
		}
	}
}

func TestServer_Breakdown(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/breakdown?dimension=surface")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.DimensionBreakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Dimension != domain.DimensionSurface {
		t.Errorf("expected surface dimension, got %s", result.Dimension)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(result.Groups))
	}
	// Worst ranking first.
	if result.Groups[0].Value != "search" {
		t.Errorf("expected search first, got %q", result.Groups[0].Value)
	}
	if result.Groups[1].Value != "home_feed" {
		t.Errorf("expected home_feed second, got %q", result.Groups[1].Value)
	}
}

func TestServer_Breakdown_DefaultDimension(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/breakdown")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.DimensionBreakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Dimension != domain.DimensionSurface {
		t.Errorf("expected surface default, got %s", result.Dimension)
	}
}

func TestServer_Breakdown_MinSessions(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/breakdown?dimension=surface&min_sessions=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.DimensionBreakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Groups) != 0 {
		t.Errorf("expected all groups suppressed, got %d", len(result.Groups))
	}
	if result.Quality.GroupsSuppressed != 2 {
		t.Errorf("expected 2 suppressed groups, got %d", result.Quality.GroupsSuppressed)
	}
}

func TestServer_Breakdown_UnknownDimension(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/breakdown?dimension=flavor")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(body["error"], "unknown dimension") {
		t.Errorf("expected unknown dimension error, got %q", body["error"])
	}
}

func TestServer_Opportunity(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/opportunity?uplift=3&targets=0.9")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.OpportunityReport
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Dimension != domain.DimensionSurface {
		t.Errorf("expected surface dimension, got %s", result.Dimension)
	}
	if result.UpliftFactor != 3 {
		t.Errorf("expected uplift 3, got %g", result.UpliftFactor)
	}
	if len(result.TargetTotals) != 1 {
		t.Errorf("expected 1 target total, got %d", len(result.TargetTotals))
	}
}

func TestServer_Opportunity_InvalidParams(t *testing.T) {
	srv := newTestServer(t)

	paths := []string{
		"/api/v1/opportunity?targets=abc",
		"/api/v1/opportunity?targets=1.5",
		"/api/v1/opportunity?targets=0",
		"/api/v1/opportunity?uplift=-1",
		"/api/v1/opportunity?dimension=flavor",
	}
	for _, path := range paths {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestServer_Trends(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/trends")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.TrendReport
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DaysBack != engine.DefaultTrendDaysBack {
		t.Errorf("expected days back %d, got %d", engine.DefaultTrendDaysBack, result.DaysBack)
	}
	if len(result.Series) != 2 {
		t.Fatalf("expected 2 daily rows, got %d", len(result.Series))
	}
	if result.Series[0].Date != "2024-03-14" {
		t.Errorf("expected first day 2024-03-14, got %s", result.Series[0].Date)
	}
}

func TestServer_Sessions(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result sessionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected 1 session, got %d", result.Count)
	}
	if result.Sessions[0].ListID != "l1" {
		t.Errorf("expected session l1, got %q", result.Sessions[0].ListID)
	}
	if result.Sessions[0].GMV != 50 {
		t.Errorf("expected session GMV 50, got %f", result.Sessions[0].GMV)
	}
}

func TestServer_Sessions_EmptyIsNotNull(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/sessions?min_items=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"sessions":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestServer_Filters(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/filters")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.FilterValues
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Surfaces) != 2 || result.Surfaces[0] != "home_feed" || result.Surfaces[1] != "search" {
		t.Errorf("expected sorted surfaces, got %v", result.Surfaces)
	}
	if len(result.Countries) != 2 || result.Countries[0] != "DE" {
		t.Errorf("expected sorted countries, got %v", result.Countries)
	}
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("expected ok status, got %s", rec.Body.String())
	}
}

func TestServer_PrometheusMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected metrics exposition output")
	}
}

func TestServer_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/v1/nothing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

var errStore = errors.New("warehouse unreachable")

type failingStore struct{}

func (failingStore) InsertImpressions(ctx context.Context, impressions []*domain.Impression) error {
	return errStore
}

func (failingStore) GetImpressions(ctx context.Context, w domain.Window) ([]*domain.Impression, error) {
	return nil, errStore
}

func (failingStore) GetFilterValues(ctx context.Context, w domain.Window) (*domain.FilterValues, error) {
	return nil, errStore
}

func TestServer_StoreFailure(t *testing.T) {
	eng := engine.New(engine.Options{ImpressionStore: failingStore{}, Logger: zerolog.Nop()})
	srv := NewServer(Options{Engine: eng, Logger: zerolog.Nop()})

	rec := doGet(t, srv, "/api/v1/metrics")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(body["error"], "impression store") {
		t.Errorf("expected store error message, got %q", body["error"])
	}
}

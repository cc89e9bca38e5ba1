package domain

// ScoreMode selects the relevance grading scheme.
type ScoreMode string

const (
	// ScoreModeGraded grades purchase=4, click=2, none=0.
	ScoreModeGraded ScoreMode = "graded"
	// ScoreModeBinary grades purchase=1, everything else 0.
	ScoreModeBinary ScoreMode = "binary"
)

// String returns the string representation of ScoreMode.
func (m ScoreMode) String() string {
	return string(m)
}

// IsValid checks if the mode is a supported value.
func (m ScoreMode) IsValid() bool {
	return m == ScoreModeGraded || m == ScoreModeBinary
}

// RecallStats holds recall percentages at the standard cutoffs for one
// interaction type. Values are percentages in [0, 100].
type RecallStats struct {
	At1  float64 `json:"at_1"`
	At5  float64 `json:"at_5"`
	At10 float64 `json:"at_10"`
}

// SnapshotMetrics is the ungrouped aggregate over every list in a window.
// Unlike dimension breakdowns it applies no minimum-session threshold.
type SnapshotMetrics struct {
	Sessions              int         `json:"sessions"`
	Impressions           int         `json:"impressions"`
	Clicks                int         `json:"clicks"`
	Purchases             int         `json:"purchases"`
	GMV                   float64     `json:"gmv"`
	CTR                   float64     `json:"ctr"`            // clicks / impressions * 100
	PTR                   float64     `json:"ptr"`            // purchases / impressions * 100
	Conversion            float64     `json:"conversion"`     // purchases / clicks * 100
	AvgNDCG               float64     `json:"avg_ndcg"`       // mean per-list NDCG
	SessionsWithClicks    int         `json:"sessions_with_clicks"`
	SessionsWithPurchases int         `json:"sessions_with_purchases"`
	RecallClick           RecallStats `json:"recall_click"`
	RecallPurchase        RecallStats `json:"recall_purchase"`
}

// GroupMetrics is the rollup for one value of one dimension.
type GroupMetrics struct {
	Dimension   Dimension `json:"dimension"`
	Value       string    `json:"value"`
	Sessions    int       `json:"sessions"` // fragments for impression-level dimensions
	Impressions int       `json:"impressions"`
	Clicks      int       `json:"clicks"`
	Purchases   int       `json:"purchases"`
	GMV         float64   `json:"gmv"`
	CTR         float64   `json:"ctr"`
	PTR         float64   `json:"ptr"`
	AvgNDCG     float64   `json:"avg_ndcg"`
	// Recall@10 per interaction type. Click recall counts all lists in the
	// group; purchase recall counts only lists that had a purchase.
	RecallClickAt10    float64 `json:"recall_click_at_10"`
	RecallPurchaseAt10 float64 `json:"recall_purchase_at_10"`
}

// OverallStats benchmarks the groups of one breakdown: mean and median are
// taken over the set of group-level means, not over raw per-session values.
type OverallStats struct {
	Groups                   int     `json:"groups"`
	MeanAvgNDCG              float64 `json:"mean_avg_ndcg"`
	MedianAvgNDCG            float64 `json:"median_avg_ndcg"`
	MeanRecallClickAt10      float64 `json:"mean_recall_click_at_10"`
	MedianRecallClickAt10    float64 `json:"median_recall_click_at_10"`
	MeanRecallPurchaseAt10   float64 `json:"mean_recall_purchase_at_10"`
	MedianRecallPurchaseAt10 float64 `json:"median_recall_purchase_at_10"`
	MeanCTR                  float64 `json:"mean_ctr"`
	MeanPTR                  float64 `json:"mean_ptr"`
}

// DimensionBreakdown is the full per-dimension rollup for one window.
// Groups are sorted by AvgNDCG ascending (worst first).
type DimensionBreakdown struct {
	Dimension Dimension      `json:"dimension"`
	Groups    []GroupMetrics `json:"groups"`
	Overall   OverallStats   `json:"overall"`
	Quality   QualityStats   `json:"quality"`
}

// QualityStats counts input anomalies normalized away during aggregation.
// These are reported, never raised as errors.
type QualityStats struct {
	DuplicatePositions   int `json:"duplicate_positions"`    // later arrivals for an already-seen position
	NonPositivePositions int `json:"non_positive_positions"` // rows with position < 1, dropped
	EmptyListsSkipped    int `json:"empty_lists_skipped"`    // lists left with zero rows
	GroupsSuppressed     int `json:"groups_suppressed"`      // groups below the minimum session count
}

// Add accumulates counts from another QualityStats.
func (q *QualityStats) Add(other QualityStats) {
	q.DuplicatePositions += other.DuplicatePositions
	q.NonPositivePositions += other.NonPositivePositions
	q.EmptyListsSkipped += other.EmptyListsSkipped
	q.GroupsSuppressed += other.GroupsSuppressed
}

// FilterValues lists the distinct filterable values present in a window.
type FilterValues struct {
	Surfaces  []string `json:"surfaces"`
	Countries []string `json:"countries"`
}

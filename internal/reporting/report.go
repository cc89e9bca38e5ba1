package reporting

import (
	"time"

	"ranklab/internal/domain"
)

// Report is one complete evaluation run over a window.
type Report struct {
	// Metadata
	RunID       string
	GeneratedAt time.Time

	// Window and scoring parameters the run was computed with.
	DaysBack int
	Surface  string
	Country  string
	K        int
	Mode     domain.ScoreMode

	// Ungrouped funnel and ranking metrics.
	Snapshot domain.SnapshotMetrics

	// Input anomalies counted while rebuilding lists for the snapshot.
	Quality domain.QualityStats

	// Per-dimension rollups in report order.
	Breakdowns []domain.DimensionBreakdown

	// GMV upside model for the configured opportunity dimension.
	Opportunity *domain.OpportunityReport

	// Daily series and its period-over-period summary.
	Trends *domain.TrendReport
}

// Package opportunity converts ranking-quality gaps into projected GMV
// uplift, per dimension group and in aggregate, with annualization.
package opportunity

import (
	"math"
	"sort"

	"ranklab/internal/domain"
)

// DefaultUpliftFactor assumes a 15% GMV lift per 10 points of relative
// NDCG improvement. A modeling assumption, not a measured constant; always
// configurable.
const DefaultUpliftFactor = 1.5

// DefaultTargets returns the standard absolute NDCG thresholds.
func DefaultTargets() []float64 {
	return []float64{0.6, 0.7, 0.8}
}

// daysPerYear scales a period figure to an annual one.
const daysPerYear = 365

// Model projects GMV uplift from NDCG gaps.
type Model struct {
	UpliftFactor float64
	Targets      []float64
}

// NewModel builds a model, falling back to defaults for zero values.
func NewModel(upliftFactor float64, targets []float64) Model {
	if upliftFactor <= 0 {
		upliftFactor = DefaultUpliftFactor
	}
	if len(targets) == 0 {
		targets = DefaultTargets()
	}
	sorted := make([]float64, len(targets))
	copy(sorted, targets)
	sort.Float64s(sorted)
	return Model{UpliftFactor: upliftFactor, Targets: sorted}
}

// Estimate projects the GMV uplift of lifting currentNDCG to targetNDCG.
// The gap is relative to the group's current NDCG, so two groups with the
// same absolute gap but different starting points receive different
// estimates. Zero when current NDCG is non-positive (the model is undefined
// below zero ranking quality) or already at or past the target; never
// negative.
func (m Model) Estimate(currentNDCG, currentGMV, targetNDCG float64) float64 {
	if currentNDCG <= 0 || currentNDCG >= targetNDCG {
		return 0
	}
	relativeGapPct := (targetNDCG - currentNDCG) / currentNDCG * 100
	return currentGMV * (relativeGapPct / 100) * m.UpliftFactor
}

// Annualize projects a period figure to a year: value * (365 / daysBack).
// A linear scale-up with no seasonality adjustment; callers surface it as
// a separately labeled output, never in place of the period value.
func Annualize(value float64, daysBack int) float64 {
	if daysBack <= 0 {
		return 0
	}
	return value * (daysPerYear / float64(daysBack))
}

// BuildReport models the opportunity of one dimension breakdown. The
// benchmark target is the median of group-level NDCG means; each group is
// additionally scored against every fixed target. Groups are sorted by
// opportunity-to-median descending, ties by value.
func (m Model) BuildReport(b domain.DimensionBreakdown, daysBack int) domain.OpportunityReport {
	report := domain.OpportunityReport{
		Dimension:    b.Dimension,
		DaysBack:     daysBack,
		UpliftFactor: m.UpliftFactor,
		MedianNDCG:   b.Overall.MedianAvgNDCG,
		Quality:      b.Quality,
	}

	targetTotals := make([]float64, len(m.Targets))
	for _, row := range b.Groups {
		g := domain.OpportunityGroup{
			Value:    row.Value,
			Sessions: row.Sessions,
			GMV:      row.GMV,
			AvgNDCG:  row.AvgNDCG,
		}
		if row.AvgNDCG > 0 && row.AvgNDCG < report.MedianNDCG {
			g.GapToMedian = report.MedianNDCG - row.AvgNDCG
			g.RelativeGapPct = sanitize(g.GapToMedian / row.AvgNDCG * 100)
		}
		g.ToMedian = m.Estimate(row.AvgNDCG, row.GMV, report.MedianNDCG)
		g.ToMedianAnnualized = Annualize(g.ToMedian, daysBack)
		g.Targets = make([]domain.TargetEstimate, len(m.Targets))
		for i, target := range m.Targets {
			period := m.Estimate(row.AvgNDCG, row.GMV, target)
			g.Targets[i] = domain.TargetEstimate{
				Target:     target,
				Period:     period,
				Annualized: Annualize(period, daysBack),
			}
			targetTotals[i] += period
		}
		report.TotalToMedian += g.ToMedian
		report.Groups = append(report.Groups, g)
	}

	sort.SliceStable(report.Groups, func(i, j int) bool {
		if report.Groups[i].ToMedian != report.Groups[j].ToMedian {
			return report.Groups[i].ToMedian > report.Groups[j].ToMedian
		}
		return report.Groups[i].Value < report.Groups[j].Value
	})

	report.TotalToMedianAnnualized = Annualize(report.TotalToMedian, daysBack)
	report.TargetTotals = make([]domain.TargetEstimate, len(m.Targets))
	for i, target := range m.Targets {
		report.TargetTotals[i] = domain.TargetEstimate{
			Target:     target,
			Period:     targetTotals[i],
			Annualized: Annualize(targetTotals[i], daysBack),
		}
	}
	return report
}

// sanitize normalizes non-finite values to 0 before they leave the model.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

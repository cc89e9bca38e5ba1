// Package trend reduces a window of impressions to a daily metric series
// and period-over-period change statistics.
package trend

import (
	"sort"
	"time"

	"ranklab/internal/domain"
	"ranklab/internal/metrics"
)

// weekLen is the window compared on each end of the series.
const weekLen = 7

// BuildDaily partitions records by UTC calendar day and aggregates each day
// independently, so a list spanning midnight contributes to both days. Days
// with no records produce no entry; the series is ordered by date ascending.
func BuildDaily(records []*domain.Impression, k int, mode domain.ScoreMode) ([]domain.DailyAggregate, domain.QualityStats) {
	byDay := make(map[string][]*domain.Impression)
	for _, rec := range records {
		day := time.UnixMilli(rec.EventTimeMs).UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], rec)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	var quality domain.QualityStats
	series := make([]domain.DailyAggregate, 0, len(days))
	for _, day := range days {
		lists, q := metrics.BuildLists(byDay[day])
		quality.Add(q)
		if len(lists) == 0 {
			continue
		}
		s := metrics.Snapshot(lists, k, mode)
		series = append(series, domain.DailyAggregate{
			Date:        day,
			Sessions:    s.Sessions,
			Impressions: s.Impressions,
			Clicks:      s.Clicks,
			Purchases:   s.Purchases,
			CTR:         s.CTR,
			PTR:         s.PTR,
			AvgNDCG:     s.AvgNDCG,
		})
	}
	return series, quality
}

// Summarize computes the trend statistics of a daily series: unweighted
// means over the full series plus the first-week/last-week change for NDCG
// and CTR. For series shorter than 14 entries the two week windows overlap
// or coincide; no smoothing, no outlier rejection.
func Summarize(series []domain.DailyAggregate) domain.TrendSummary {
	summary := domain.TrendSummary{Days: len(series)}
	if len(series) == 0 {
		return summary
	}

	ndcgs := make([]float64, len(series))
	ctrs := make([]float64, len(series))
	ptrs := make([]float64, len(series))
	for i, day := range series {
		summary.TotalSessions += day.Sessions
		summary.TotalImpressions += day.Impressions
		ndcgs[i] = day.AvgNDCG
		ctrs[i] = day.CTR
		ptrs[i] = day.PTR
	}

	summary.MeanNDCG = mean(ndcgs)
	summary.MeanCTR = mean(ctrs)
	summary.MeanPTR = mean(ptrs)

	first := len(series)
	if first > weekLen {
		first = weekLen
	}
	last := len(series) - weekLen
	if last < 0 {
		last = 0
	}
	summary.NDCGChangePct = pctChange(mean(ndcgs[:first]), mean(ndcgs[last:]))
	summary.CTRChangePct = pctChange(mean(ctrs[:first]), mean(ctrs[last:]))
	return summary
}

// pctChange is (after-before)/before*100, 0 when the baseline is 0.
func pctChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

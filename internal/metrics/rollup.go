package metrics

import (
	"sort"

	"ranklab/internal/domain"
	"ranklab/internal/ranking"
)

// Recall cutoff reported per group. The snapshot additionally reports the
// 1 and 5 cutoffs.
const groupRecallCutoff = 10

// firstHit returns the 1-based prefix index of the first clicked (or
// purchased) record in the list, 0 when the list has none. The index is
// counted within the rebuilt list, not taken from the Position field.
func firstHit(l *List, purchase bool) int {
	for i, rec := range l.Items {
		if purchase && rec.Purchased {
			return i + 1
		}
		if !purchase && rec.Clicked {
			return i + 1
		}
	}
	return 0
}

// recallClickAtK is the percentage of all lists whose first click falls at
// a prefix index <= k. Lists without a click count against the denominator.
func recallClickAtK(lists []*List, k int) float64 {
	if len(lists) == 0 {
		return 0
	}
	hits := 0
	for _, l := range lists {
		if idx := firstHit(l, false); idx > 0 && idx <= k {
			hits++
		}
	}
	return ratioPct(float64(hits), float64(len(lists)))
}

// recallPurchaseAtK is the percentage of purchasing lists whose first
// purchase falls at a prefix index <= k. Unlike click recall, lists without
// a purchase are excluded from the denominator.
func recallPurchaseAtK(lists []*List, k int) float64 {
	relevant := 0
	hits := 0
	for _, l := range lists {
		idx := firstHit(l, true)
		if idx == 0 {
			continue
		}
		relevant++
		if idx <= k {
			hits++
		}
	}
	return ratioPct(float64(hits), float64(relevant))
}

// countList sums one list's funnel counters.
func countList(l *List) (impressions, clicks, purchases int, gmv float64) {
	impressions = len(l.Items)
	for _, rec := range l.Items {
		if rec.Clicked {
			clicks++
		}
		if rec.Purchased {
			purchases++
		}
		gmv += rec.AttributedValue
	}
	return impressions, clicks, purchases, gmv
}

// Snapshot computes the ungrouped aggregate over every list. No minimum
// session threshold applies here.
func Snapshot(lists []*List, k int, mode domain.ScoreMode) domain.SnapshotMetrics {
	var s domain.SnapshotMetrics
	s.Sessions = len(lists)

	ndcgs := make([]float64, 0, len(lists))
	for _, l := range lists {
		impressions, clicks, purchases, gmv := countList(l)
		s.Impressions += impressions
		s.Clicks += clicks
		s.Purchases += purchases
		s.GMV += gmv
		if clicks > 0 {
			s.SessionsWithClicks++
		}
		if purchases > 0 {
			s.SessionsWithPurchases++
		}
		ndcgs = append(ndcgs, ranking.NDCG(l.Items, k, mode))
	}

	s.CTR = ratioPct(float64(s.Clicks), float64(s.Impressions))
	s.PTR = ratioPct(float64(s.Purchases), float64(s.Impressions))
	s.Conversion = ratioPct(float64(s.Purchases), float64(s.Clicks))
	s.AvgNDCG = sanitize(computeMean(ndcgs))
	s.RecallClick = domain.RecallStats{
		At1:  recallClickAtK(lists, 1),
		At5:  recallClickAtK(lists, 5),
		At10: recallClickAtK(lists, 10),
	}
	s.RecallPurchase = domain.RecallStats{
		At1:  recallPurchaseAtK(lists, 1),
		At5:  recallPurchaseAtK(lists, 5),
		At10: recallPurchaseAtK(lists, 10),
	}
	return s
}

// group is one dimension value with the lists (or list fragments) assigned
// to it.
type group struct {
	value string
	lists []*List
}

// assignGroups buckets lists by dimension value at the granularity the
// dimension naturally varies. Session-level dimensions take one bucket per
// whole list via its representative value; impression-level dimensions
// explode each list into per-value fragments first. Groups come back in
// value order.
func assignGroups(lists []*List, d domain.Dimension) []group {
	byValue := make(map[string][]*List)
	for _, l := range lists {
		if d.SessionLevel() {
			if v := RepresentativeValue(l, d); v != "" {
				byValue[v] = append(byValue[v], l)
			}
			continue
		}
		for v, fragment := range explode(l, d) {
			byValue[v] = append(byValue[v], fragment)
		}
	}

	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)

	groups := make([]group, 0, len(values))
	for _, v := range values {
		groups = append(groups, group{value: v, lists: byValue[v]})
	}
	return groups
}

// groupMetrics rolls one group into its metrics row.
func groupMetrics(d domain.Dimension, g group, k int, mode domain.ScoreMode) domain.GroupMetrics {
	row := domain.GroupMetrics{
		Dimension: d,
		Value:     g.value,
		Sessions:  len(g.lists),
	}
	ndcgs := make([]float64, 0, len(g.lists))
	for _, l := range g.lists {
		impressions, clicks, purchases, gmv := countList(l)
		row.Impressions += impressions
		row.Clicks += clicks
		row.Purchases += purchases
		row.GMV += gmv
		ndcgs = append(ndcgs, ranking.NDCG(l.Items, k, mode))
	}
	row.CTR = ratioPct(float64(row.Clicks), float64(row.Impressions))
	row.PTR = ratioPct(float64(row.Purchases), float64(row.Impressions))
	row.AvgNDCG = sanitize(computeMean(ndcgs))
	row.RecallClickAt10 = recallClickAtK(g.lists, groupRecallCutoff)
	row.RecallPurchaseAt10 = recallPurchaseAtK(g.lists, groupRecallCutoff)
	return row
}

// BuildBreakdown computes the per-dimension rollup. Groups under
// minSessions are suppressed from the output (counted in Quality) so small
// samples cannot dominate the comparison; they remain part of any ungrouped
// snapshot the caller computes. Rows are sorted by AvgNDCG ascending, worst
// first, ties by value.
func BuildBreakdown(lists []*List, d domain.Dimension, k int, mode domain.ScoreMode, minSessions int) domain.DimensionBreakdown {
	breakdown := domain.DimensionBreakdown{Dimension: d}

	for _, g := range assignGroups(lists, d) {
		if len(g.lists) < minSessions {
			breakdown.Quality.GroupsSuppressed++
			continue
		}
		breakdown.Groups = append(breakdown.Groups, groupMetrics(d, g, k, mode))
	}

	sort.SliceStable(breakdown.Groups, func(i, j int) bool {
		if breakdown.Groups[i].AvgNDCG != breakdown.Groups[j].AvgNDCG {
			return breakdown.Groups[i].AvgNDCG < breakdown.Groups[j].AvgNDCG
		}
		return breakdown.Groups[i].Value < breakdown.Groups[j].Value
	})

	breakdown.Overall = overallStats(breakdown.Groups)
	return breakdown
}

// overallStats benchmarks the surviving groups: mean and median over the
// set of group-level means, not over raw per-session values.
func overallStats(rows []domain.GroupMetrics) domain.OverallStats {
	stats := domain.OverallStats{Groups: len(rows)}
	if len(rows) == 0 {
		return stats
	}

	ndcgs := make([]float64, len(rows))
	clickRecalls := make([]float64, len(rows))
	purchaseRecalls := make([]float64, len(rows))
	ctrs := make([]float64, len(rows))
	ptrs := make([]float64, len(rows))
	for i, row := range rows {
		ndcgs[i] = row.AvgNDCG
		clickRecalls[i] = row.RecallClickAt10
		purchaseRecalls[i] = row.RecallPurchaseAt10
		ctrs[i] = row.CTR
		ptrs[i] = row.PTR
	}

	stats.MeanAvgNDCG = computeMean(ndcgs)
	stats.MedianAvgNDCG = computeMedian(ndcgs)
	stats.MeanRecallClickAt10 = computeMean(clickRecalls)
	stats.MedianRecallClickAt10 = computeMedian(clickRecalls)
	stats.MeanRecallPurchaseAt10 = computeMean(purchaseRecalls)
	stats.MedianRecallPurchaseAt10 = computeMedian(purchaseRecalls)
	stats.MeanCTR = computeMean(ctrs)
	stats.MeanPTR = computeMean(ptrs)
	return stats
}

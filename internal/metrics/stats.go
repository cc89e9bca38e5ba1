// Package metrics turns raw impression streams into per-list scores and
// per-dimension rollups: funnel rates, recall@K, NDCG means and medians.
package metrics

import (
	"math"
	"sort"
)

// computeMean calculates the arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.50 = median).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMedian calculates the median of values without mutating the input.
func computeMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return computePercentile(sorted, 0.50)
}

// ratioPct calculates num/den*100, 0 when the denominator is 0.
func ratioPct(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return sanitize(num / den * 100)
}

// sanitize normalizes non-finite values to 0. No NaN or Infinity ever
// crosses the engine boundary.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

package ranking

import (
	"math"
	"sort"

	"ranklab/internal/domain"
)

// Scored holds the ranking metrics of one list at a given cutoff and mode.
type Scored struct {
	DCG   float64
	IDCG  float64
	NDCG  float64 // DCG/IDCG, 0 when IDCG is 0; always in [0, 1]
	Ideal []*domain.Impression
}

// DCG computes discounted cumulative gain over the first min(k, len(items))
// records in their existing order. The log2 discount uses the 1-based index
// within the truncated prefix, not the Position field, so lists need not
// start at position 1. Empty input or k <= 0 yields 0.
func DCG(items []*domain.Impression, k int, mode domain.ScoreMode) float64 {
	if k <= 0 || len(items) == 0 {
		return 0
	}
	if k > len(items) {
		k = len(items)
	}
	var dcg float64
	for i := 0; i < k; i++ {
		rel := Relevance(items[i], mode)
		if rel == 0 {
			continue
		}
		dcg += float64(rel) / math.Log2(float64(i)+2)
	}
	return dcg
}

// IdealOrder returns the records sorted by relevance descending. The sort is
// stable: ties keep their original relative order, so repeated calls over the
// same input produce the same permutation. The input slice is not modified.
func IdealOrder(items []*domain.Impression, mode domain.ScoreMode) []*domain.Impression {
	ideal := make([]*domain.Impression, len(items))
	copy(ideal, items)
	sort.SliceStable(ideal, func(i, j int) bool {
		return Relevance(ideal[i], mode) > Relevance(ideal[j], mode)
	})
	return ideal
}

// IDCG computes the DCG of the ideal ordering, the normalizing ceiling for
// NDCG. Invariant to the input order.
func IDCG(items []*domain.Impression, k int, mode domain.ScoreMode) float64 {
	return DCG(IdealOrder(items, mode), k, mode)
}

// NDCG computes DCG/IDCG in [0, 1]. A list with no relevant items has
// IDCG 0 and scores 0, never a division by zero.
func NDCG(items []*domain.Impression, k int, mode domain.ScoreMode) float64 {
	idcg := IDCG(items, k, mode)
	if idcg <= 0 {
		return 0
	}
	return DCG(items, k, mode) / idcg
}

// Score computes all ranking metrics for one list in a single pass over the
// ideal ordering.
func Score(items []*domain.Impression, k int, mode domain.ScoreMode) Scored {
	ideal := IdealOrder(items, mode)
	dcg := DCG(items, k, mode)
	idcg := DCG(ideal, k, mode)
	s := Scored{DCG: dcg, IDCG: idcg, Ideal: ideal}
	if idcg > 0 {
		s.NDCG = dcg / idcg
	}
	return s
}

// Package ranking scores a single ordered list of impressions with
// DCG/IDCG/NDCG and reconstructs the ideal ordering.
package ranking

import "ranklab/internal/domain"

// Relevance grades under graded mode. Purchase dominates click: a row with
// both flags set grades as a purchase.
const (
	gradePurchased = 4
	gradeClicked   = 2
	gradeNone      = 0
)

// Relevance maps one impression to its relevance grade. Total over all flag
// combinations; a row with neither flag set grades 0, never an error.
func Relevance(im *domain.Impression, mode domain.ScoreMode) int {
	if mode == domain.ScoreModeBinary {
		if im.Purchased {
			return 1
		}
		return 0
	}
	switch {
	case im.Purchased:
		return gradePurchased
	case im.Clicked:
		return gradeClicked
	}
	return gradeNone
}

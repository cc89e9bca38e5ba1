package domain

// TargetEstimate is the projected uplift for one absolute NDCG target.
type TargetEstimate struct {
	Target     float64 `json:"target"`
	Period     float64 `json:"period"`     // uplift over the analysis window
	Annualized float64 `json:"annualized"` // period * (365 / days_back)
}

// OpportunityGroup is one dimension value with its modeled GMV upside.
type OpportunityGroup struct {
	Value    string  `json:"value"`
	Sessions int     `json:"sessions"`
	GMV      float64 `json:"gmv"`
	AvgNDCG  float64 `json:"avg_ndcg"`

	// Gap to the overall median NDCG, absolute points and relative percent.
	// Both are 0 when the group already meets the median.
	GapToMedian    float64 `json:"gap_to_median"`
	RelativeGapPct float64 `json:"relative_gap_pct"`

	ToMedian           float64          `json:"opportunity_to_median"`
	ToMedianAnnualized float64          `json:"opportunity_to_median_annualized"`
	Targets            []TargetEstimate `json:"targets"`
}

// OpportunityReport models the GMV upside of closing ranking-quality gaps
// across one dimension. Groups are sorted by ToMedian descending.
type OpportunityReport struct {
	Dimension    Dimension          `json:"dimension"`
	DaysBack     int                `json:"days_back"`
	UpliftFactor float64            `json:"uplift_factor"`
	MedianNDCG   float64            `json:"median_ndcg"` // benchmark target, median of group means
	Groups       []OpportunityGroup `json:"groups"`

	TotalToMedian           float64          `json:"total_to_median"`
	TotalToMedianAnnualized float64          `json:"total_to_median_annualized"`
	TargetTotals            []TargetEstimate `json:"target_totals"`

	Quality QualityStats `json:"quality"`
}

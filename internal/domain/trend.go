package domain

// DailyAggregate is one day of ungrouped metrics inside a trend window.
// Days with no impressions produce no entry; gaps are allowed.
type DailyAggregate struct {
	Date        string  `json:"date"` // YYYY-MM-DD, UTC
	Sessions    int     `json:"sessions"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	Purchases   int     `json:"purchases"`
	CTR         float64 `json:"ctr"`
	PTR         float64 `json:"ptr"`
	AvgNDCG     float64 `json:"avg_ndcg"`
}

// TrendSummary reduces a daily series to period-over-period statistics.
// Change percentages compare the mean of the last 7 entries against the
// mean of the first 7; for series shorter than 14 entries the two windows
// overlap or coincide. Means are unweighted across daily entries.
type TrendSummary struct {
	Days             int     `json:"days"` // entries in the series
	TotalSessions    int     `json:"total_sessions"`
	TotalImpressions int     `json:"total_impressions"`
	MeanNDCG         float64 `json:"mean_ndcg"`
	MeanCTR          float64 `json:"mean_ctr"`
	MeanPTR          float64 `json:"mean_ptr"`
	NDCGChangePct    float64 `json:"ndcg_change_pct"`
	CTRChangePct     float64 `json:"ctr_change_pct"`
}

// TrendReport is the full trends response for one window.
type TrendReport struct {
	DaysBack int              `json:"days_back"`
	Series   []DailyAggregate `json:"series"` // ordered by date ascending
	Summary  TrendSummary     `json:"summary"`
	Quality  QualityStats     `json:"quality"`
}

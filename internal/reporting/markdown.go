package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Ranking Evaluation Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: last %d days | surface: %s | country: %s\n\n",
		r.DaysBack, orAll(r.Surface), orAll(r.Country)))
	sb.WriteString(fmt.Sprintf("Scoring: NDCG@%d, %s relevance\n\n", r.K, r.Mode))

	// Snapshot
	sb.WriteString("## Snapshot\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", r.Snapshot.Sessions))
	sb.WriteString(fmt.Sprintf("| Impressions | %d |\n", r.Snapshot.Impressions))
	sb.WriteString(fmt.Sprintf("| Clicks | %d |\n", r.Snapshot.Clicks))
	sb.WriteString(fmt.Sprintf("| Purchases | %d |\n", r.Snapshot.Purchases))
	sb.WriteString(fmt.Sprintf("| GMV | %s |\n", formatCurrency(r.Snapshot.GMV)))
	sb.WriteString(fmt.Sprintf("| CTR | %.2f%% |\n", r.Snapshot.CTR))
	sb.WriteString(fmt.Sprintf("| PTR | %.2f%% |\n", r.Snapshot.PTR))
	sb.WriteString(fmt.Sprintf("| Conversion | %.2f%% |\n", r.Snapshot.Conversion))
	sb.WriteString(fmt.Sprintf("| Avg NDCG | %.4f |\n", r.Snapshot.AvgNDCG))
	sb.WriteString(fmt.Sprintf("| Sessions with Clicks | %d |\n", r.Snapshot.SessionsWithClicks))
	sb.WriteString(fmt.Sprintf("| Sessions with Purchases | %d |\n", r.Snapshot.SessionsWithPurchases))
	sb.WriteString("\n")

	sb.WriteString("| Recall | @1 | @5 | @10 |\n")
	sb.WriteString("|--------|----|----|-----|\n")
	sb.WriteString(fmt.Sprintf("| Click | %.2f%% | %.2f%% | %.2f%% |\n",
		r.Snapshot.RecallClick.At1, r.Snapshot.RecallClick.At5, r.Snapshot.RecallClick.At10))
	sb.WriteString(fmt.Sprintf("| Purchase | %.2f%% | %.2f%% | %.2f%% |\n",
		r.Snapshot.RecallPurchase.At1, r.Snapshot.RecallPurchase.At5, r.Snapshot.RecallPurchase.At10))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	q := r.Quality
	if q.DuplicatePositions == 0 && q.NonPositivePositions == 0 && q.EmptyListsSkipped == 0 {
		sb.WriteString("No input anomalies detected.\n\n")
	} else {
		sb.WriteString("| Anomaly | Count |\n")
		sb.WriteString("|---------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Duplicate positions | %d |\n", q.DuplicatePositions))
		sb.WriteString(fmt.Sprintf("| Non-positive positions | %d |\n", q.NonPositivePositions))
		sb.WriteString(fmt.Sprintf("| Empty lists skipped | %d |\n", q.EmptyListsSkipped))
		sb.WriteString("\n")
	}

	// Per-dimension breakdowns
	for _, b := range r.Breakdowns {
		sb.WriteString(fmt.Sprintf("## Breakdown: %s\n\n", b.Dimension))
		if len(b.Groups) == 0 {
			sb.WriteString("No groups met the minimum session count.\n\n")
			continue
		}

		sb.WriteString("| Value | Sessions | Impressions | Clicks | Purchases | CTR | PTR | Avg NDCG | Click@10 | Purchase@10 | GMV |\n")
		sb.WriteString("|-------|----------|-------------|--------|-----------|-----|-----|----------|----------|-------------|-----|\n")
		for _, g := range b.Groups {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.2f%% | %.2f%% | %.4f | %.2f%% | %.2f%% | %s |\n",
				g.Value, g.Sessions, g.Impressions, g.Clicks, g.Purchases,
				g.CTR, g.PTR, g.AvgNDCG, g.RecallClickAt10, g.RecallPurchaseAt10,
				formatCurrency(g.GMV)))
		}
		sb.WriteString(fmt.Sprintf("\nOverall: %d groups | mean NDCG %.4f | median NDCG %.4f | suppressed %d\n\n",
			b.Overall.Groups, b.Overall.MeanAvgNDCG, b.Overall.MedianAvgNDCG,
			b.Quality.GroupsSuppressed))
	}

	// Opportunity
	if r.Opportunity != nil {
		o := r.Opportunity
		sb.WriteString(fmt.Sprintf("## GMV Opportunity by %s\n\n", o.Dimension))
		sb.WriteString(fmt.Sprintf("Median NDCG: %.4f | Uplift factor: %.1f\n\n",
			o.MedianNDCG, o.UpliftFactor))

		if len(o.Groups) == 0 {
			sb.WriteString("No groups met the minimum session count.\n\n")
		} else {
			sb.WriteString("| Value | Sessions | GMV | Avg NDCG | Gap | Relative Gap | To Median | Annualized |\n")
			sb.WriteString("|-------|----------|-----|----------|-----|--------------|-----------|------------|\n")
			for _, g := range o.Groups {
				sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.4f | %.4f | %.2f%% | %s | %s |\n",
					g.Value, g.Sessions, formatCurrency(g.GMV), g.AvgNDCG,
					g.GapToMedian, g.RelativeGapPct,
					formatCurrency(g.ToMedian), formatCurrency(g.ToMedianAnnualized)))
			}
			sb.WriteString(fmt.Sprintf("\nTotal to median: %s (annualized %s)\n\n",
				formatCurrency(o.TotalToMedian), formatCurrency(o.TotalToMedianAnnualized)))

			sb.WriteString("| Target NDCG | Period | Annualized |\n")
			sb.WriteString("|-------------|--------|------------|\n")
			for _, t := range o.TargetTotals {
				sb.WriteString(fmt.Sprintf("| %.2f | %s | %s |\n",
					t.Target, formatCurrency(t.Period), formatCurrency(t.Annualized)))
			}
			sb.WriteString("\n")
		}
	}

	// Trends
	if r.Trends != nil {
		sb.WriteString("## Trends\n\n")
		if len(r.Trends.Series) == 0 {
			sb.WriteString("No daily data available.\n\n")
		} else {
			sb.WriteString("| Date | Sessions | Impressions | Clicks | Purchases | CTR | PTR | Avg NDCG |\n")
			sb.WriteString("|------|----------|-------------|--------|-----------|-----|-----|----------|\n")
			for _, d := range r.Trends.Series {
				sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.2f%% | %.2f%% | %.4f |\n",
					d.Date, d.Sessions, d.Impressions, d.Clicks, d.Purchases,
					d.CTR, d.PTR, d.AvgNDCG))
			}
			s := r.Trends.Summary
			sb.WriteString(fmt.Sprintf("\nSummary: %d days | %d sessions | mean NDCG %.4f | NDCG change %+.1f%% | CTR change %+.1f%%\n\n",
				s.Days, s.TotalSessions, s.MeanNDCG, s.NDCGChangePct, s.CTRChangePct))
		}
	}

	return sb.String()
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

// formatCurrency renders a dollar amount with thousands separators, e.g.
// $1,234,567.89.
func formatCurrency(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var sb strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(intPart[i])
	}

	out := "$" + sb.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

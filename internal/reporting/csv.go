package reporting

import (
	"fmt"
	"strings"

	"ranklab/internal/domain"
)

// RenderCSV renders the per-dimension group rollups as a CSV string. Rows
// keep the breakdown order: dimensions in report order, groups worst NDCG
// first within each.
func RenderCSV(breakdowns []domain.DimensionBreakdown) string {
	var sb strings.Builder

	// Header
	sb.WriteString("dimension,value,sessions,impressions,clicks,purchases,")
	sb.WriteString("ctr,ptr,avg_ndcg,recall_click_at_10,recall_purchase_at_10,gmv\n")

	// Rows
	for _, b := range breakdowns {
		for _, g := range b.Groups {
			sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.2f\n",
				b.Dimension,
				csvEscape(g.Value),
				g.Sessions,
				g.Impressions,
				g.Clicks,
				g.Purchases,
				g.CTR,
				g.PTR,
				g.AvgNDCG,
				g.RecallClickAt10,
				g.RecallPurchaseAt10,
				g.GMV,
			))
		}
	}

	return sb.String()
}

// csvEscape quotes a value containing separators. Dimension values are
// usually plain identifiers; categories can carry commas.
func csvEscape(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

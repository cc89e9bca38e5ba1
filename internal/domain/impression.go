package domain

// Impression represents one item shown to one user inside one ranked list.
// Corresponds to the recs_impressions table in ClickHouse; dimension values
// are denormalized onto the row at ingest time so the query path never joins.
type Impression struct {
	ListID      string // ranking session identifier, groups rows into one list
	UserID      string // raw user identifier, "" or "0" means anonymous
	ProductID   string // item shown
	Position    int    // 1-based rank as actually rendered
	Clicked     bool   // item received a click-equivalent interaction
	Purchased   bool   // item received a purchase-equivalent interaction
	EventTimeMs int64  // impression timestamp, Unix milliseconds

	// Attributed GMV for this row, 0 unless the item converted.
	AttributedValue float64

	// Grouping dimensions. Never consulted by scoring.
	Surface  string // placement surface (home_feed, search, pdp, ...)
	Module   string // section within the surface
	Reranker string // ranking algorithm identifier
	CGSource string // candidate-generation source
	Category string // product category, enriched from the catalog
	Country  string // buyer country, enriched from user dimensions
	Segment  string // returning | anonymous, derived from UserID
}

// Segment values derived from UserID at ingest time.
const (
	SegmentReturning = "returning"
	SegmentAnonymous = "anonymous"
)

// DeriveSegment maps a raw user identifier to its segment value.
// Any non-empty identifier other than "0" counts as a returning user.
func DeriveSegment(userID string) string {
	if userID == "" || userID == "0" {
		return SegmentAnonymous
	}
	return SegmentReturning
}

// DimensionValue returns this row's value for the given dimension.
// Returns "" for an unknown dimension or a position outside every bucket;
// rows with an empty value do not join that dimension's rollup.
func (im *Impression) DimensionValue(d Dimension) string {
	switch d {
	case DimensionSurface:
		return im.Surface
	case DimensionModule:
		return im.Module
	case DimensionReranker:
		return im.Reranker
	case DimensionCGSource:
		return im.CGSource
	case DimensionCategory:
		return im.Category
	case DimensionCountry:
		return im.Country
	case DimensionSegment:
		return im.Segment
	case DimensionPositionBucket:
		return PositionBucket(im.Position)
	}
	return ""
}

// Window bounds an evaluation query. DaysBack counts backwards from now;
// Surface and Country are optional equality filters, empty means all.
type Window struct {
	DaysBack int
	Surface  string
	Country  string
}

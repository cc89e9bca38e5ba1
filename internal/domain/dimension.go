package domain

// Dimension identifies a segmentation axis for aggregation.
// The set is closed: each dimension carries its own grouping granularity.
type Dimension string

const (
	DimensionSurface        Dimension = "surface"
	DimensionModule         Dimension = "module"
	DimensionReranker       Dimension = "reranker"
	DimensionCGSource       Dimension = "cg_source"
	DimensionCategory       Dimension = "category"
	DimensionCountry        Dimension = "country"
	DimensionSegment        Dimension = "segment"
	DimensionPositionBucket Dimension = "position_bucket"
)

// String returns the string representation of Dimension.
func (d Dimension) String() string {
	return string(d)
}

// IsValid checks if the dimension is a supported value.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionSurface, DimensionModule, DimensionReranker, DimensionCGSource,
		DimensionCategory, DimensionCountry, DimensionSegment, DimensionPositionBucket:
		return true
	}
	return false
}

// SessionLevel reports whether the dimension is constant across a whole list.
// Session-level dimensions bucket entire lists by a representative value;
// impression-level dimensions (module, reranker, cg_source, position bucket)
// vary within a list and explode it into per-value sub-lists before scoring.
func (d Dimension) SessionLevel() bool {
	switch d {
	case DimensionSurface, DimensionCategory, DimensionCountry, DimensionSegment:
		return true
	}
	return false
}

// Dimensions returns all supported dimensions in report order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionSurface,
		DimensionModule,
		DimensionReranker,
		DimensionCGSource,
		DimensionCategory,
		DimensionCountry,
		DimensionSegment,
		DimensionPositionBucket,
	}
}

// Position bucket labels. Boundary positions belong to the lower bucket.
const (
	BucketTop          = "1-3"
	BucketFirstScroll  = "4-6"
	BucketSecondScroll = "7-10"
	BucketDeepScroll   = "11-15"
	BucketBottom       = "16-20"
)

// PositionBucket maps a 1-based position to its bucket label.
// Positions outside 1..20 have no bucket and return "".
func PositionBucket(position int) string {
	switch {
	case position < 1:
		return ""
	case position <= 3:
		return BucketTop
	case position <= 6:
		return BucketFirstScroll
	case position <= 10:
		return BucketSecondScroll
	case position <= 15:
		return BucketDeepScroll
	case position <= 20:
		return BucketBottom
	}
	return ""
}

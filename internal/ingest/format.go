package ingest

import (
	"ranklab/internal/domain"
)

// unknownValue stands in for any dimension the input or the enrichment
// lookups could not resolve. Stamping it at ingest keeps the warehouse rows
// self-contained; the query path never coalesces.
const unknownValue = "unknown"

// EventRecord is one impression event line in the JSONL input. Category,
// country and segment are not part of the wire format; the loader enriches
// them before insert.
type EventRecord struct {
	ListID          string  `json:"list_id"`
	UserID          string  `json:"user_id"`
	ProductID       string  `json:"product_id"`
	Position        int     `json:"position"`
	Clicked         bool    `json:"clicked"`
	Purchased       bool    `json:"purchased"`
	AttributedValue float64 `json:"attributed_value"`
	EventTimeMs     int64   `json:"event_time_ms"`
	Surface         string  `json:"surface"`
	Module          string  `json:"module"`
	Reranker        string  `json:"reranker"`
	CGSource        string  `json:"cg_source"`
}

// Valid reports whether the record carries the identifiers an impression
// cannot exist without. Non-positive positions are accepted here; the
// aggregation layer counts and drops them.
func (r *EventRecord) Valid() bool {
	return r.ListID != "" && r.ProductID != "" && r.EventTimeMs > 0
}

// Impression converts the wire record to a domain impression with the
// self-reported dimensions normalized. Category and country start unknown
// until enrichment fills them.
func (r *EventRecord) Impression() *domain.Impression {
	return &domain.Impression{
		ListID:          r.ListID,
		UserID:          r.UserID,
		ProductID:       r.ProductID,
		Position:        r.Position,
		Clicked:         r.Clicked,
		Purchased:       r.Purchased,
		AttributedValue: r.AttributedValue,
		EventTimeMs:     r.EventTimeMs,
		Surface:         coalesce(r.Surface),
		Module:          coalesce(r.Module),
		Reranker:        coalesce(r.Reranker),
		CGSource:        coalesce(r.CGSource),
		Category:        unknownValue,
		Country:         unknownValue,
		Segment:         domain.DeriveSegment(r.UserID),
	}
}

// CatalogRecord is one product line in the catalog JSONL input.
type CatalogRecord struct {
	ProductID string `json:"product_id"`
	Category  string `json:"category"`
}

// Valid reports whether the record can be upserted.
func (r *CatalogRecord) Valid() bool {
	return r.ProductID != ""
}

// Product converts the wire record to a catalog entry. Products without a
// category are stored under the unknown value rather than rejected.
func (r *CatalogRecord) Product() *domain.Product {
	return &domain.Product{
		ProductID: r.ProductID,
		Category:  coalesce(r.Category),
	}
}

// UserRecord is one user line in the user-dimensions JSONL input.
type UserRecord struct {
	UserID  string `json:"user_id"`
	Country string `json:"country"`
}

// Valid reports whether the record can be upserted.
func (r *UserRecord) Valid() bool {
	return r.UserID != ""
}

// User converts the wire record to a user-dimension entry.
func (r *UserRecord) User() *domain.UserDimension {
	return &domain.UserDimension{
		UserID:  r.UserID,
		Country: coalesce(r.Country),
	}
}

func coalesce(v string) string {
	if v == "" {
		return unknownValue
	}
	return v
}

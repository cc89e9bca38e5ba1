package metrics

import (
	"sort"

	"ranklab/internal/domain"
)

// List is one ranked list rebuilt from raw impressions: position-ascending,
// one record per position. Immutable once built.
type List struct {
	ID      string
	StartMs int64 // earliest impression timestamp in the list
	Items   []*domain.Impression
}

// BuildLists groups records by list id and rebuilds each ranked list.
// Records with non-positive positions are dropped; later arrivals for an
// already-seen position are discarded (dedup-by-first-seen, input order).
// A list whose records were all dropped is skipped and counted, never
// scored as zero. All anomalies are counted in the returned QualityStats.
//
// The returned slice preserves first-appearance order of list ids, so the
// same input always yields the same output.
func BuildLists(records []*domain.Impression) ([]*List, domain.QualityStats) {
	var quality domain.QualityStats

	byID := make(map[string]*List)
	seen := make(map[string]map[int]bool)
	var order []string

	for _, rec := range records {
		l := byID[rec.ListID]
		if l == nil {
			l = &List{ID: rec.ListID}
			byID[rec.ListID] = l
			seen[rec.ListID] = make(map[int]bool)
			order = append(order, rec.ListID)
		}
		if rec.Position < 1 {
			quality.NonPositivePositions++
			continue
		}
		if seen[rec.ListID][rec.Position] {
			quality.DuplicatePositions++
			continue
		}
		seen[rec.ListID][rec.Position] = true
		// StartMs tracks the earliest kept record only.
		if len(l.Items) == 0 || rec.EventTimeMs < l.StartMs {
			l.StartMs = rec.EventTimeMs
		}
		l.Items = append(l.Items, rec)
	}

	lists := make([]*List, 0, len(order))
	for _, id := range order {
		l := byID[id]
		if len(l.Items) == 0 {
			quality.EmptyListsSkipped++
			continue
		}
		sort.Slice(l.Items, func(i, j int) bool {
			return l.Items[i].Position < l.Items[j].Position
		})
		lists = append(lists, l)
	}
	return lists, quality
}

// RepresentativeValue picks the list's value for a session-level dimension:
// the most frequent value among its records, ties broken by the value seen
// at the earliest position. Records with an empty value do not vote. For a
// dimension constant across the list this is the identity.
func RepresentativeValue(l *List, d domain.Dimension) string {
	counts := make(map[string]int)
	firstAt := make(map[string]int)
	for i, rec := range l.Items {
		v := rec.DimensionValue(d)
		if v == "" {
			continue
		}
		counts[v]++
		if _, ok := firstAt[v]; !ok {
			firstAt[v] = i
		}
	}
	best := ""
	for v, c := range counts {
		if best == "" || c > counts[best] || (c == counts[best] && firstAt[v] < firstAt[best]) {
			best = v
		}
	}
	return best
}

// explode splits one list into per-value sub-lists for an impression-level
// dimension, preserving position order within each fragment. Records with
// an empty value for the dimension join no fragment.
func explode(l *List, d domain.Dimension) map[string]*List {
	fragments := make(map[string]*List)
	for _, rec := range l.Items {
		v := rec.DimensionValue(d)
		if v == "" {
			continue
		}
		f := fragments[v]
		if f == nil {
			f = &List{ID: l.ID, StartMs: l.StartMs}
			fragments[v] = f
		}
		f.Items = append(f.Items, rec)
	}
	return fragments
}

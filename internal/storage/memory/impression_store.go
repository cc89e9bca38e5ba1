package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ranklab/internal/domain"
	"ranklab/internal/storage"
)

// ImpressionStore is an in-memory implementation of storage.ImpressionStore.
type ImpressionStore struct {
	mu   sync.RWMutex
	data []*domain.Impression

	// now is injectable so window filtering is deterministic in tests.
	now func() time.Time
}

// NewImpressionStore creates a new in-memory impression store.
func NewImpressionStore() *ImpressionStore {
	return &ImpressionStore{now: time.Now}
}

// Compile-time interface check.
var _ storage.ImpressionStore = (*ImpressionStore)(nil)

// WithClock overrides the store's time source.
func (s *ImpressionStore) WithClock(now func() time.Time) *ImpressionStore {
	s.now = now
	return s
}

// InsertImpressions appends a batch of impression events.
func (s *ImpressionStore) InsertImpressions(_ context.Context, impressions []*domain.Impression) error {
	if len(impressions) == 0 {
		return nil
	}
	for _, im := range impressions {
		if im == nil || im.ListID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, im := range impressions {
		cp := *im
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetImpressions retrieves every impression inside the window, ordered by
// list_id, event_time, position.
func (s *ImpressionStore) GetImpressions(_ context.Context, w domain.Window) ([]*domain.Impression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.cutoffMs(w)
	out := make([]*domain.Impression, 0)
	for _, im := range s.data {
		if !s.matches(im, w, cutoff) {
			continue
		}
		cp := *im
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ListID != out[j].ListID {
			return out[i].ListID < out[j].ListID
		}
		if out[i].EventTimeMs != out[j].EventTimeMs {
			return out[i].EventTimeMs < out[j].EventTimeMs
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

// GetFilterValues retrieves the distinct surfaces and countries in the
// window, sorted ascending.
func (s *ImpressionStore) GetFilterValues(_ context.Context, w domain.Window) (*domain.FilterValues, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.cutoffMs(w)
	surfaces := make(map[string]struct{})
	countries := make(map[string]struct{})
	for _, im := range s.data {
		if !s.matches(im, w, cutoff) {
			continue
		}
		if im.Surface != "" {
			surfaces[im.Surface] = struct{}{}
		}
		if im.Country != "" {
			countries[im.Country] = struct{}{}
		}
	}

	fv := &domain.FilterValues{
		Surfaces:  sortedKeys(surfaces),
		Countries: sortedKeys(countries),
	}
	return fv, nil
}

func (s *ImpressionStore) cutoffMs(w domain.Window) int64 {
	if w.DaysBack <= 0 {
		return 0
	}
	return s.now().Add(-time.Duration(w.DaysBack) * 24 * time.Hour).UnixMilli()
}

func (s *ImpressionStore) matches(im *domain.Impression, w domain.Window, cutoffMs int64) bool {
	if im.EventTimeMs < cutoffMs {
		return false
	}
	if w.Surface != "" && im.Surface != w.Surface {
		return false
	}
	if w.Country != "" && im.Country != w.Country {
		return false
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

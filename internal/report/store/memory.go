package store

import (
	"context"
	"sort"
	"sync"

	"sanitrack/internal/report/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// InMemory keeps reports in a map guarded by a RWMutex. Reports are
// immutable, so the store exposes no update operation at all.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ReportID]*models.Report
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ReportID]*models.Report)}
}

func (s *InMemory) Create(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *r
	s.byID[r.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

// ListByOwner returns one citizen's reports, newest first, filtered and
// paginated, with the unpaginated total.
func (s *InMemory) ListByOwner(ctx context.Context, ownerID id.UserID, filter models.ListFilter, limit, offset int) ([]*models.Report, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Report
	for _, r := range s.byID {
		if r.OwnerID != ownerID {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && r.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []*models.Report{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	page := make([]*models.Report, 0, end-offset)
	for _, r := range matched[offset:end] {
		clone := *r
		page = append(page, &clone)
	}
	return page, total, nil
}

// AggregateByLocation groups reports inside the bounding box by exact
// coordinate and returns per-coordinate counts.
func (s *InMemory) AggregateByLocation(ctx context.Context, box models.BoundingBox, category models.Category) ([]models.LocationBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ lat, lon float64 }
	counts := make(map[key]int)
	for _, r := range s.byID {
		if r.Latitude < box.MinLat || r.Latitude > box.MaxLat ||
			r.Longitude < box.MinLon || r.Longitude > box.MaxLon {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		counts[key{r.Latitude, r.Longitude}]++
	}

	buckets := make([]models.LocationBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, models.LocationBucket{Latitude: k.lat, Longitude: k.lon, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Latitude != buckets[j].Latitude {
			return buckets[i].Latitude < buckets[j].Latitude
		}
		return buckets[i].Longitude < buckets[j].Longitude
	})
	return buckets, nil
}

// Snapshot captures the store state for in-memory transaction rollback.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[id.ReportID]*models.Report, len(s.byID))
	for k, v := range s.byID {
		clone := *v
		byID[k] = &clone
	}
	return byID
}

// Restore resets the store to a snapshot taken earlier.
func (s *InMemory) Restore(snap any) {
	state, ok := snap.(map[id.ReportID]*models.Report)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = state
}

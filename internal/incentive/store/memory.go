package store

import (
	"context"
	"sort"
	"sync"

	"sanitrack/internal/incentive/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// InMemory keeps incentive records in maps guarded by a RWMutex.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[id.IncentiveID]*models.Incentive
	byReport map[id.ReportID]id.IncentiveID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.IncentiveID]*models.Incentive),
		byReport: make(map[id.ReportID]id.IncentiveID),
	}
}

func (s *InMemory) Create(ctx context.Context, inc *models.Incentive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReport[inc.ReportID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[inc.ID] = inc.Clone()
	s.byReport[inc.ReportID] = inc.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, incentiveID id.IncentiveID) (*models.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.byID[incentiveID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return inc.Clone(), nil
}

func (s *InMemory) FindByReportID(ctx context.Context, reportID id.ReportID) (*models.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incentiveID, ok := s.byReport[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[incentiveID].Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, inc *models.Incentive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[inc.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.byID[inc.ID] = inc.Clone()
	return nil
}

// ListByCitizen returns a citizen's incentive records, newest first.
func (s *InMemory) ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Incentive
	for _, inc := range s.byID {
		if inc.CitizenID == citizenID {
			matched = append(matched, inc.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// Snapshot captures the store state for in-memory transaction rollback.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[id.IncentiveID]*models.Incentive, len(s.byID))
	for k, v := range s.byID {
		byID[k] = v.Clone()
	}
	byReport := make(map[id.ReportID]id.IncentiveID, len(s.byReport))
	for k, v := range s.byReport {
		byReport[k] = v
	}
	return &inMemorySnapshot{byID: byID, byReport: byReport}
}

// Restore resets the store to a snapshot taken earlier.
func (s *InMemory) Restore(snap any) {
	state, ok := snap.(*inMemorySnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = state.byID
	s.byReport = state.byReport
}

type inMemorySnapshot struct {
	byID     map[id.IncentiveID]*models.Incentive
	byReport map[id.ReportID]id.IncentiveID
}

package store

import (
	"context"
	"sort"
	"sync"

	"sanitrack/internal/cases/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// InMemory keeps cases in maps guarded by a RWMutex. Pure I/O; transition
// rules live in the models and the workflow service.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[id.CaseID]*models.Case
	byReport map[id.ReportID]id.CaseID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.CaseID]*models.Case),
		byReport: make(map[id.ReportID]id.CaseID),
	}
}

func (s *InMemory) Create(ctx context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReport[c.ReportID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[c.ID] = c.Clone()
	s.byReport[c.ReportID] = c.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) FindByReportID(ctx context.Context, reportID id.ReportID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caseID, ok := s.byReport[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[caseID].Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[c.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.byID[c.ID] = c.Clone()
	return nil
}

// Execute runs an atomic validate-then-mutate on one case. The lock is held
// across both callbacks, so no concurrent Execute or Update can interleave
// between the precondition check and the write. Returns the mutated case.
func (s *InMemory) Execute(ctx context.Context, caseID id.CaseID,
	validate func(*models.Case) error,
	mutate func(*models.Case),
) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := c.Clone()
	if err := validate(work); err != nil {
		return nil, err
	}
	mutate(work)
	s.byID[caseID] = work
	return work.Clone(), nil
}

// List returns cases matching any of the given statuses (all statuses when
// empty), newest first, with offset/limit pagination and the unpaginated
// total.
func (s *InMemory) List(ctx context.Context, statuses []models.Status, limit, offset int) ([]*models.Case, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[models.Status]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}

	var matched []*models.Case
	for _, c := range s.byID {
		if len(wanted) > 0 {
			if _, ok := wanted[c.Status]; !ok {
				continue
			}
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []*models.Case{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	page := make([]*models.Case, 0, end-offset)
	for _, c := range matched[offset:end] {
		page = append(page, c.Clone())
	}
	return page, total, nil
}

// Snapshot captures the store state for in-memory transaction rollback.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[id.CaseID]*models.Case, len(s.byID))
	for k, v := range s.byID {
		byID[k] = v.Clone()
	}
	byReport := make(map[id.ReportID]id.CaseID, len(s.byReport))
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
	byID     map[id.CaseID]*models.Case
	byReport map[id.ReportID]id.CaseID
}

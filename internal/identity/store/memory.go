package store

import (
	"context"
	"strings"
	"sync"

	"sanitrack/internal/identity/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// InMemory keeps users in a map guarded by a RWMutex. Pure I/O; role rules
// and phone normalization belong to the models and services.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.User
	byPhone map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.UserID]*models.User),
		byPhone: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.PhoneNumber)
	if _, exists := s.byPhone[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *user
	s.byID[user.ID] = &clone
	s.byPhone[key] = user.ID
	return nil
}

func (s *InMemory) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[user.ID]; !exists {
		return sentinel.ErrNotFound
	}
	clone := *user
	s.byID[user.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *InMemory) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byPhone[strings.ToLower(phone)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[userID]
	return &clone, nil
}

package store

import (
	"context"
	"sync"
	"time"

	"sanitrack/internal/auth/models"
	"sanitrack/pkg/platform/sentinel"
)

// InMemory keeps pending challenges keyed by phone number. One active
// challenge per phone: a new request replaces the old code.
type InMemory struct {
	mu      sync.Mutex
	byPhone map[string]models.Challenge
}

func NewInMemory() *InMemory {
	return &InMemory{byPhone: make(map[string]models.Challenge)}
}

func (s *InMemory) Save(ctx context.Context, challenge models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPhone[challenge.PhoneNumber] = challenge
	return nil
}

func (s *InMemory) Find(ctx context.Context, phone string, now time.Time) (models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.byPhone[phone]
	if !ok {
		return models.Challenge{}, sentinel.ErrNotFound
	}
	if challenge.Expired(now) {
		delete(s.byPhone, phone)
		return models.Challenge{}, sentinel.ErrExpired
	}
	return challenge, nil
}

func (s *InMemory) Delete(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPhone, phone)
	return nil
}

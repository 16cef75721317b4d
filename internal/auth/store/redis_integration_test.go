//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sanitrack/internal/auth/models"
	"sanitrack/internal/auth/store"
	platformredis "sanitrack/internal/platform/redis"
	"sanitrack/pkg/platform/sentinel"
	"sanitrack/pkg/testutil/containers"
)

type RedisOTPSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisOTPSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisOTPSuite))
}

func (s *RedisOTPSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisOTPSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisOTPSuite) challenge(ttl time.Duration) models.Challenge {
	return models.Challenge{
		PhoneNumber: "+233241234567",
		CodeHash:    models.HashCode("123456"),
		ExpiresAt:   time.Now().Add(ttl),
	}
}

func (s *RedisOTPSuite) TestSaveAndFind() {
	ctx := context.Background()
	challenge := s.challenge(time.Minute)
	s.Require().NoError(s.store.Save(ctx, challenge))

	found, err := s.store.Find(ctx, challenge.PhoneNumber, time.Now())
	s.Require().NoError(err)
	s.True(found.Matches("123456"))
	s.False(found.Matches("654321"))

	_, err = s.store.Find(ctx, "+233200000000", time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisOTPSuite) TestDelete() {
	ctx := context.Background()
	challenge := s.challenge(time.Minute)
	s.Require().NoError(s.store.Save(ctx, challenge))
	s.Require().NoError(s.store.Delete(ctx, challenge.PhoneNumber))

	_, err := s.store.Find(ctx, challenge.PhoneNumber, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisOTPSuite) TestSaveRefusesExpired() {
	s.Require().ErrorIs(s.store.Save(context.Background(), s.challenge(-time.Minute)), sentinel.ErrExpired)
}

// TestKeyExpiry lets the redis TTL lapse for real: an expired code is a
// plain miss, matching the redis-backed contract.
func (s *RedisOTPSuite) TestKeyExpiry() {
	ctx := context.Background()
	challenge := s.challenge(time.Second)
	s.Require().NoError(s.store.Save(ctx, challenge))

	s.Require().Eventually(func() bool {
		_, err := s.store.Find(ctx, challenge.PhoneNumber, time.Now())
		return errors.Is(err, sentinel.ErrNotFound)
	}, 5*time.Second, 200*time.Millisecond)
}

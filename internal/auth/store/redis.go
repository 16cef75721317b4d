package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sanitrack/internal/auth/models"
	platformredis "sanitrack/internal/platform/redis"
	"sanitrack/pkg/platform/sentinel"
)

const otpKeyPrefix = "otp:"

// RedisStore keeps pending challenges in Redis with the TTL enforced by key
// expiry, so codes vanish on schedule without a sweeper.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedis(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, challenge models.Challenge) error {
	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, otpKeyPrefix+challenge.PhoneNumber, challenge.CodeHash, ttl).Err(); err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, phone string, now time.Time) (models.Challenge, error) {
	hash, err := s.client.Get(ctx, otpKeyPrefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired keys and never-issued keys are indistinguishable here.
			return models.Challenge{}, sentinel.ErrNotFound
		}
		return models.Challenge{}, fmt.Errorf("load otp challenge: %w", err)
	}
	return models.Challenge{PhoneNumber: phone, CodeHash: hash}, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, otpKeyPrefix+phone).Err(); err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}

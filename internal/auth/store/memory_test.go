package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sanitrack/internal/auth/models"
	"sanitrack/pkg/platform/sentinel"
)

func TestInMemoryChallengeLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewInMemory()

	challenge := models.Challenge{
		PhoneNumber: "+233241234567",
		CodeHash:    models.HashCode("123456"),
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	require.NoError(t, s.Save(ctx, challenge))

	t.Run("finds a pending challenge", func(t *testing.T) {
		found, err := s.Find(ctx, challenge.PhoneNumber, now)
		require.NoError(t, err)
		require.True(t, found.Matches("123456"))
	})

	t.Run("unknown phone", func(t *testing.T) {
		_, err := s.Find(ctx, "+233200000000", now)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("save replaces the pending challenge", func(t *testing.T) {
		replacement := challenge
		replacement.CodeHash = models.HashCode("654321")
		require.NoError(t, s.Save(ctx, replacement))

		found, err := s.Find(ctx, challenge.PhoneNumber, now)
		require.NoError(t, err)
		require.False(t, found.Matches("123456"))
		require.True(t, found.Matches("654321"))
	})

	t.Run("delete consumes the challenge", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, challenge.PhoneNumber))
		_, err := s.Find(ctx, challenge.PhoneNumber, now)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewInMemory()

	challenge := models.Challenge{
		PhoneNumber: "+233241234567",
		CodeHash:    models.HashCode("123456"),
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	require.NoError(t, s.Save(ctx, challenge))

	_, err := s.Find(ctx, challenge.PhoneNumber, now.Add(5*time.Minute+time.Second))
	require.ErrorIs(t, err, sentinel.ErrExpired)

	// The expired entry is gone: a later lookup is a plain miss.
	_, err = s.Find(ctx, challenge.PhoneNumber, now)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

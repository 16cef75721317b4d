package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sanitrack/pkg/domain"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+233201234567", "+233201234567", false},
		{"233201234567", "+233201234567", false},
		{"0201234567", "+233201234567", false},
		{"020 123 4567", "+233201234567", false},
		{"+233 20 123 4567", "+233201234567", false},
		{"201234567", "", true},   // no prefix
		{"02012345", "", true},    // too short
		{"02012345678", "", true}, // too long
		{"", "", true},
		{"not-a-number", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNewUser(t *testing.T) {
	now := time.Now().UTC()

	user, err := NewUser(id.NewUserID(), "0201234567", RoleCitizen, now)
	require.NoError(t, err)
	assert.Equal(t, "+233201234567", user.PhoneNumber)
	assert.Equal(t, RoleCitizen, user.Role)
	assert.True(t, user.IsActive)

	_, err = NewUser(id.NewUserID(), "0201234567", Role("mayor"), now)
	require.Error(t, err)

	_, err = NewUser(id.NewUserID(), "12345", RoleCitizen, now)
	require.Error(t, err)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleCitizen.Valid())
	assert.True(t, RoleEnforcementOfficer.Valid())
	assert.True(t, RoleAssemblyAdmin.Valid())
	assert.False(t, Role("").Valid())
}

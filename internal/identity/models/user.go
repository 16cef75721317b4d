package models

import (
	"strings"
	"time"

	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
)

// Role determines which workflow operations an actor may invoke.
type Role string

const (
	RoleCitizen            Role = "citizen"
	RoleEnforcementOfficer Role = "enforcement_officer"
	RoleAssemblyAdmin      Role = "assembly_admin"
)

var validRoles = map[Role]struct{}{
	RoleCitizen:            {},
	RoleEnforcementOfficer: {},
	RoleAssemblyAdmin:      {},
}

func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

func (r Role) String() string { return string(r) }

// User is an authenticated actor: a reporting citizen, an enforcement
// officer, or an assembly admin.
type User struct {
	ID          id.UserID `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	FullName    string    `json:"full_name,omitempty"`
	Role        Role      `json:"role"`
	Anonymous   bool      `json:"anonymous"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUser constructs a citizen account for a normalized phone number.
func NewUser(userID id.UserID, phone string, role Role, now time.Time) (*User, error) {
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown role %q", role)
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:          userID,
		PhoneNumber: normalized,
		Role:        role,
		Anonymous:   true,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NormalizePhone formats a Ghanaian phone number to +233xxxxxxxxx.
// Accepts "+233xxxxxxxxx", "233xxxxxxxxx", or local "0xxxxxxxxx" forms.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case strings.HasPrefix(d, "233") && len(d) == 12:
		return "+" + d, nil
	case strings.HasPrefix(d, "0") && len(d) == 10:
		return "+233" + d[1:], nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "invalid phone number format")
	}
}

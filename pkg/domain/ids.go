// Package domain holds shared domain primitives: typed identifiers for the
// entities that cross package boundaries. Distinct types keep a ReportID from
// being passed where a CaseID is expected; the compiler enforces it.
package domain

import (
	"github.com/google/uuid"

	dErrors "sanitrack/pkg/domain-errors"
)

type (
	// UserID identifies a citizen, enforcement officer, or assembly admin.
	UserID uuid.UUID

	// ReportID identifies an immutable submitted report.
	ReportID uuid.UUID

	// CaseID identifies the workflow case paired with a report.
	CaseID uuid.UUID

	// IncentiveID identifies the reward ledger entry paired with a report.
	IncentiveID uuid.UUID
)

// parse enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parse(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", kind)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be nil", kind)
	}
	return id, nil
}

func ParseUserID(raw string) (UserID, error) {
	id, err := parse(raw, "user")
	return UserID(id), err
}

func ParseReportID(raw string) (ReportID, error) {
	id, err := parse(raw, "report")
	return ReportID(id), err
}

func ParseCaseID(raw string) (CaseID, error) {
	id, err := parse(raw, "case")
	return CaseID(id), err
}

func ParseIncentiveID(raw string) (IncentiveID, error) {
	id, err := parse(raw, "incentive")
	return IncentiveID(id), err
}

func NewUserID() UserID           { return UserID(uuid.New()) }
func NewReportID() ReportID       { return ReportID(uuid.New()) }
func NewCaseID() CaseID           { return CaseID(uuid.New()) }
func NewIncentiveID() IncentiveID { return IncentiveID(uuid.New()) }

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id ReportID) String() string    { return uuid.UUID(id).String() }
func (id CaseID) String() string      { return uuid.UUID(id).String() }
func (id IncentiveID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id IncentiveID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText make the typed IDs JSON- and sql-friendly
// without giving up type distinction.

func (id UserID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ReportID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id CaseID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id IncentiveID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReportID) UnmarshalText(b []byte) error {
	parsed, err := ParseReportID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CaseID) UnmarshalText(b []byte) error {
	parsed, err := ParseCaseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *IncentiveID) UnmarshalText(b []byte) error {
	parsed, err := ParseIncentiveID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

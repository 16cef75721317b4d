package service

import (
	"context"
	"errors"
	"time"

	"sanitrack/internal/incentive/models"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/platform/sentinel"
)

// Store is the persistence surface the ledger needs. The workflow passes a
// transaction-bound instance so award and rejection notes commit together
// with the case transition that caused them.
type Store interface {
	FindByReportID(ctx context.Context, reportID id.ReportID) (*models.Incentive, error)
	Update(ctx context.Context, inc *models.Incentive) error
	ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Incentive, error)
}

// Policy is the reward formula. Currently a flat amount per verified
// report; the value is configuration, not derived from report content.
type Policy struct {
	PointsPerVerifiedReport int
}

func NewPolicy(points int) Policy {
	return Policy{PointsPerVerifiedReport: points}
}

// PointsFor returns the award for one verified report.
func (p Policy) PointsFor() int {
	return p.PointsPerVerifiedReport
}

// Ledger applies reward bookkeeping. It owns no store of its own: the
// caller supplies one, so the same code runs inside a workflow transaction
// and against a plain store in tests.
type Ledger struct {
	policy Policy
}

func NewLedger(policy Policy) *Ledger {
	return &Ledger{policy: policy}
}

// Award marks the report's incentive earned and records the point value.
// It is callable only from an approve transition; the workflow guarantees
// at-most-once because approve requires the case to still be submitted.
func (l *Ledger) Award(ctx context.Context, store Store, reportID id.ReportID, caseID id.CaseID, actorID id.UserID, now time.Time) (*models.Incentive, error) {
	inc, err := store.FindByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "report has no incentive record")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load incentive")
	}
	if err := inc.CanAward(); err != nil {
		return nil, err
	}
	inc.ApplyAward(caseID, l.policy.PointsFor(), actorID, now)
	if err := store.Update(ctx, inc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record award")
	}
	return inc, nil
}

// NoteRejection appends a rejection audit entry. Points stay at 0 and the
// record stays pending.
func (l *Ledger) NoteRejection(ctx context.Context, store Store, reportID id.ReportID, actorID id.UserID, reason string, now time.Time) error {
	inc, err := store.FindByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvariantViolation, "report has no incentive record")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load incentive")
	}
	inc.ApplyRejectionNote(actorID, reason, now)
	if err := store.Update(ctx, inc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rejection")
	}
	return nil
}

// Summary is the citizen-facing balance view.
type Summary struct {
	TotalEarned   int                 `json:"total_earned"`
	TotalRedeemed int                 `json:"total_redeemed"`
	Balance       int                 `json:"balance"`
	Incentives    []*models.Incentive `json:"incentives"`
}

// Service is the read side of the ledger: balance summaries for the
// citizen endpoints. Writes go through Ledger under a workflow transaction.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Summary returns the citizen's incentives with earned/redeemed totals.
func (s *Service) Summary(ctx context.Context, citizenID id.UserID) (*Summary, error) {
	if citizenID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "citizen id is required")
	}
	incentives, err := s.store.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list incentives")
	}
	summary := &Summary{Incentives: incentives}
	for _, inc := range incentives {
		switch inc.Status {
		case models.StatusEarned:
			summary.TotalEarned += inc.Points
		case models.StatusRedeemed:
			summary.TotalEarned += inc.Points
			summary.TotalRedeemed += inc.Points
		}
	}
	summary.Balance = summary.TotalEarned - summary.TotalRedeemed
	return summary, nil
}

package models

import (
	"time"

	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
)

// Status is the reward lifecycle state of an incentive record.
type Status string

const (
	// StatusPending: report submitted, awaiting approval. Points are 0.
	StatusPending Status = "pending"
	// StatusEarned: case approved, points awarded.
	StatusEarned Status = "earned"
	// StatusRedeemed: citizen exchanged the points for a reward.
	StatusRedeemed Status = "redeemed"
)

// RewardType is what earned points were exchanged for. Set only on
// redemption; redemption itself lives outside the workflow core.
type RewardType string

const (
	RewardDataBundle    RewardType = "data_bundle"
	RewardCashToken     RewardType = "cash_token"
	RewardUtilityCredit RewardType = "utility_credit"
)

// Audit log action names.
const (
	ActionPointsAwarded = "points_awarded"
	ActionCaseRejected  = "case_rejected"
	ActionRedeemed      = "reward_redeemed"
)

// AuditEntry records one incentive-affecting event. The log is append-only
// and chronological.
type AuditEntry struct {
	Action      string         `json:"action"`
	Timestamp   time.Time      `json:"timestamp"`
	PerformedBy id.UserID      `json:"performed_by"`
	Details     map[string]any `json:"details,omitempty"`
}

// Incentive is the reward ledger entry paired one-to-one with a report.
//
// Invariants:
//   - Points > 0 implies status ∈ {earned, redeemed}
//   - A rejected report leaves its incentive at 0 points, status pending
//   - The award happens at most once, during the approve transition
type Incentive struct {
	ID         id.IncentiveID `json:"id"`
	CitizenID  id.UserID      `json:"user_id"`
	ReportID   id.ReportID    `json:"report_id"`
	CaseID     *id.CaseID     `json:"case_id,omitempty"` // linked at approval
	Points     int            `json:"points"`
	Status     Status         `json:"status"`
	RewardType *RewardType    `json:"reward_type,omitempty"`
	RedeemedAt *time.Time     `json:"redeemed_at,omitempty"`
	AuditLog   []AuditEntry   `json:"audit_log"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewIncentive constructs the pending zero-point record created alongside a
// report submission.
func NewIncentive(incentiveID id.IncentiveID, citizenID id.UserID, reportID id.ReportID, now time.Time) (*Incentive, error) {
	if citizenID.IsZero() || reportID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "incentive requires a citizen and a report")
	}
	return &Incentive{
		ID:        incentiveID,
		CitizenID: citizenID,
		ReportID:  reportID,
		Points:    0,
		Status:    StatusPending,
		AuditLog:  []AuditEntry{},
		CreatedAt: now,
	}, nil
}

// CanAward checks the exactly-once award precondition: status == pending.
// The workflow guarantees this holds at most once per case because approve
// itself requires the case to still be submitted.
func (i *Incentive) CanAward() error {
	if i.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"incentive must be pending to award, currently %s", i.Status)
	}
	return nil
}

// ApplyAward marks the points earned and links the case, appending the
// audit entry with the awarded value.
func (i *Incentive) ApplyAward(caseID id.CaseID, points int, actorID id.UserID, now time.Time) {
	i.Points = points
	i.Status = StatusEarned
	i.CaseID = &caseID
	i.appendAudit(ActionPointsAwarded, actorID, now, map[string]any{"points": points})
}

// ApplyRejectionNote records the rejection in the audit log without touching
// points or status: the record stays pending at 0 points.
func (i *Incentive) ApplyRejectionNote(actorID id.UserID, reason string, now time.Time) {
	i.appendAudit(ActionCaseRejected, actorID, now, map[string]any{"reason": reason})
}

func (i *Incentive) appendAudit(action string, actor id.UserID, now time.Time, details map[string]any) {
	i.AuditLog = append(i.AuditLog, AuditEntry{
		Action:      action,
		Timestamp:   now,
		PerformedBy: actor,
		Details:     details,
	})
}

// Clone returns a deep copy so stores can hand out records without sharing
// the audit slice.
func (i *Incentive) Clone() *Incentive {
	clone := *i
	clone.AuditLog = make([]AuditEntry, len(i.AuditLog))
	copy(clone.AuditLog, i.AuditLog)
	return &clone
}

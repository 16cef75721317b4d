package models

import (
	"time"

	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
)

// Status is the case lifecycle state.
//
// The machine is fixed: submitted → approved → assigned → completed, with
// submitted → rejected as the only other edge. rejected and completed are
// terminal. There is no un-reject, no re-open, and no shortcut from
// submitted to completed.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// transitions is the closed edge set. Every transition in the system goes
// through CanTransitionTo; no scattered status checks.
var transitions = map[Status][]Status{
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusAssigned},
	StatusAssigned:  {StatusCompleted},
	StatusCompleted: {},
	StatusRejected:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether the edge s → next exists.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HistoryEntry records one taken transition. The history is append-only and
// chronological; its last entry's status always equals the current status
// once at least one transition has occurred.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	ChangedBy id.UserID `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Case is the mutable workflow record tracking a report's review and
// enforcement. One-to-one with its report.
//
// Invariants:
//   - Status transitions only follow the edges in the transition table
//   - StatusHistory gains exactly one entry per transition, in order
//   - AssignedTo is set if and only if status ∈ {approved, assigned, completed}
type Case struct {
	ID                 id.CaseID      `json:"id"`
	ReportID           id.ReportID    `json:"report_id"`
	Status             Status         `json:"status"`
	AssignedTo         *id.UserID     `json:"assigned_to,omitempty"` // enforcement officer
	ApprovedBy         *id.UserID     `json:"approved_by,omitempty"` // deciding admin (approve or reject)
	ApprovalNotes      string         `json:"approval_notes,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CompletionEvidence string         `json:"completion_evidence,omitempty"`
	StatusHistory      []HistoryEntry `json:"status_history"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewCase constructs the case paired with a freshly submitted report.
// History starts empty: entries record transitions, not creation.
func NewCase(caseID id.CaseID, reportID id.ReportID, now time.Time) (*Case, error) {
	if reportID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case requires a report")
	}
	return &Case{
		ID:            caseID,
		ReportID:      reportID,
		Status:        StatusSubmitted,
		StatusHistory: []HistoryEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (c *Case) guardTransition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeValidation,
			"case must be in %s status, currently %s", requiredStatusFor(next), c.Status)
	}
	return nil
}

// requiredStatusFor names the single legal predecessor of next. The
// transition table is a chain plus one branch, so each target has exactly
// one source.
func requiredStatusFor(next Status) Status {
	for from, targets := range transitions {
		for _, to := range targets {
			if to == next {
				return from
			}
		}
	}
	return next
}

// CanApprove checks the approve precondition: status == submitted.
func (c *Case) CanApprove() error {
	return c.guardTransition(StatusApproved)
}

// ApplyApproval transitions the case to approved, records the deciding
// admin, the officer the case is handed to, and the approval instant, and
// appends the history entry. Call CanApprove first (the store's Execute
// callback holds the lock across both).
func (c *Case) ApplyApproval(adminID, officerID id.UserID, notes string, now time.Time) {
	c.Status = StatusApproved
	c.AssignedTo = &officerID
	c.ApprovedBy = &adminID
	c.ApprovalNotes = notes
	c.ApprovedAt = &now
	c.UpdatedAt = now
	c.appendHistory(StatusApproved, adminID, now, notes)
}

// CanReject checks the reject precondition: status == submitted.
func (c *Case) CanReject() error {
	return c.guardTransition(StatusRejected)
}

// ApplyRejection transitions the case to the terminal rejected status.
// The deciding admin and instant reuse the approval fields; the reason
// lands in ApprovalNotes and the history entry.
func (c *Case) ApplyRejection(adminID id.UserID, reason string, now time.Time) {
	c.Status = StatusRejected
	c.ApprovedBy = &adminID
	c.ApprovalNotes = reason
	c.ApprovedAt = &now
	c.UpdatedAt = now
	c.appendHistory(StatusRejected, adminID, now, reason)
}

// CanAcknowledge checks the pickup precondition: status == approved and the
// acknowledging officer is the one the approval assigned.
func (c *Case) CanAcknowledge(officerID id.UserID) error {
	if err := c.guardTransition(StatusAssigned); err != nil {
		return err
	}
	if c.AssignedTo == nil || *c.AssignedTo != officerID {
		return dErrors.New(dErrors.CodeForbidden, "you are not assigned to this case")
	}
	return nil
}

// ApplyAcknowledgement transitions the case to assigned, recording the
// officer's acceptance of the enforcement task.
func (c *Case) ApplyAcknowledgement(officerID id.UserID, now time.Time) {
	c.Status = StatusAssigned
	c.UpdatedAt = now
	c.appendHistory(StatusAssigned, officerID, now, "officer acknowledged assignment")
}

// CanComplete checks the completion precondition: status == assigned and
// the completing officer is the assigned one. The actor check runs first so
// an unassigned officer gets a forbidden error even on a case in the wrong
// status.
func (c *Case) CanComplete(officerID id.UserID) error {
	if c.AssignedTo == nil || *c.AssignedTo != officerID {
		return dErrors.New(dErrors.CodeForbidden, "you are not assigned to this case")
	}
	return c.guardTransition(StatusCompleted)
}

// ApplyCompletion transitions the case to the terminal completed status
// with the evidence reference.
func (c *Case) ApplyCompletion(officerID id.UserID, evidenceRef string, now time.Time) {
	c.Status = StatusCompleted
	c.CompletedAt = &now
	c.CompletionEvidence = evidenceRef
	c.UpdatedAt = now
	c.appendHistory(StatusCompleted, officerID, now, "enforcement completed")
}

func (c *Case) appendHistory(status Status, actor id.UserID, now time.Time, reason string) {
	c.StatusHistory = append(c.StatusHistory, HistoryEntry{
		Status:    status,
		ChangedBy: actor,
		Timestamp: now,
		Reason:    reason,
	})
}

// Clone returns a deep copy so stores can hand out cases without sharing
// the history slice.
func (c *Case) Clone() *Case {
	clone := *c
	clone.StatusHistory = make([]HistoryEntry, len(c.StatusHistory))
	copy(clone.StatusHistory, c.StatusHistory)
	return &clone
}

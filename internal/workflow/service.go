// Package workflow is the transition authority for sanitation cases. Every
// status change goes through this service, which applies the case state
// machine and its paired incentive effect as one atomic unit: an approve
// that fails to award points leaves the case untouched, and vice versa.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"sanitrack/internal/audit"
	casemodels "sanitrack/internal/cases/models"
	identity "sanitrack/internal/identity/models"
	incentiveservice "sanitrack/internal/incentive/service"
	"sanitrack/internal/platform/metrics"
	reportmodels "sanitrack/internal/report/models"
	"sanitrack/pkg/attrs"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/platform/sentinel"
	"sanitrack/pkg/requestcontext"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CaseStore is the persistence surface for cases. Execute runs the
// validate-then-mutate pair under per-case serialization so a precondition
// check and its write form one atomic read-modify-write.
type CaseStore interface {
	FindByID(ctx context.Context, caseID id.CaseID) (*casemodels.Case, error)
	Execute(ctx context.Context, caseID id.CaseID,
		validate func(*casemodels.Case) error,
		mutate func(*casemodels.Case)) (*casemodels.Case, error)
	List(ctx context.Context, statuses []casemodels.Status, limit, offset int) ([]*casemodels.Case, int, error)
}

// UserFinder resolves actor references, used to validate officer assignment.
type UserFinder interface {
	FindByID(ctx context.Context, userID id.UserID) (*identity.User, error)
}

// ReportFinder supplies report details for case views.
type ReportFinder interface {
	FindByID(ctx context.Context, reportID id.ReportID) (*reportmodels.Report, error)
}

// Stores bundles the transaction-bound stores a workflow operation writes.
type Stores struct {
	Cases      CaseStore
	Incentives incentiveservice.Store
}

// StoreTx runs fn inside one transaction. fn receives store instances bound
// to that transaction; a non-nil error rolls every write back.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// AuditPublisher receives operational audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates case transitions and their incentive effects.
type Service struct {
	tx             StoreTx
	cases          CaseStore
	incentives     incentiveservice.Store
	reports        ReportFinder
	users          UserFinder
	ledger         *incentiveservice.Ledger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. cases and incentives are the read-path stores;
// tx hands out their transaction-bound counterparts for writes.
func New(tx StoreTx, cases CaseStore, incentives incentiveservice.Store, reports ReportFinder, users UserFinder, ledger *incentiveservice.Ledger, opts ...Option) *Service {
	s := &Service{
		tx:         tx,
		cases:      cases,
		incentives: incentives,
		reports:    reports,
		users:      users,
		ledger:     ledger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CaseView is a case enriched with details of the report it tracks.
type CaseView struct {
	Case         *casemodels.Case      `json:"case"`
	Category     reportmodels.Category `json:"category"`
	Latitude     float64               `json:"latitude"`
	Longitude    float64               `json:"longitude"`
	PointsEarned int                   `json:"points_earned"`
}

// CaseList is one page of case views plus the unpaginated total.
type CaseList struct {
	Cases  []CaseView `json:"cases"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// GetCase loads one case with its report details and awarded points.
func (s *Service) GetCase(ctx context.Context, caseID id.CaseID) (*CaseView, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, translateCaseErr(err)
	}
	view, err := s.enrich(ctx, c)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListCases returns cases filtered by status, newest first. An empty filter
// means the review queue: everything still awaiting action (submitted or
// approved).
func (s *Service) ListCases(ctx context.Context, statuses []casemodels.Status, limit, offset int) (*CaseList, error) {
	if len(statuses) == 0 {
		statuses = []casemodels.Status{casemodels.StatusSubmitted, casemodels.StatusApproved}
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown case status %q", st)
		}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	cases, total, err := s.cases.List(ctx, statuses, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	list := &CaseList{Cases: make([]CaseView, 0, len(cases)), Total: total, Limit: limit, Offset: offset}
	for _, c := range cases {
		view, err := s.enrich(ctx, c)
		if err != nil {
			return nil, err
		}
		list.Cases = append(list.Cases, *view)
	}
	return list, nil
}

// ApproveInput carries the admin's approval decision: which officer takes
// the case, plus optional notes.
type ApproveInput struct {
	OfficerID id.UserID
	Notes     string
}

// Approve verifies the violation: transitions the case submitted→approved,
// assigns the enforcement officer, and awards the citizen's points, all in
// one transaction. At most one approval ever succeeds per case because the
// transition requires the case to still be submitted.
func (s *Service) Approve(ctx context.Context, caseID id.CaseID, in ApproveInput) (*casemodels.Case, error) {
	adminID, err := requireRole(ctx, identity.RoleAssemblyAdmin, "approve")
	if err != nil {
		return nil, err
	}
	officer, err := s.users.FindByID(ctx, in.OfficerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "assigned officer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assigned officer")
	}
	if officer.Role != identity.RoleEnforcementOfficer {
		return nil, dErrors.New(dErrors.CodeValidation, "cases can only be assigned to enforcement officers")
	}

	now := requestcontext.Now(ctx)
	var (
		updated *casemodels.Case
		points  int
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		c, err := stores.Cases.Execute(ctx, caseID,
			func(c *casemodels.Case) error { return c.CanApprove() },
			func(c *casemodels.Case) { c.ApplyApproval(adminID, in.OfficerID, in.Notes, now) },
		)
		if err != nil {
			return translateCaseErr(err)
		}
		inc, err := s.ledger.Award(ctx, stores.Incentives, c.ReportID, c.ID, adminID, now)
		if err != nil {
			return err
		}
		updated = c
		points = inc.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventCaseApproved),
		"case_id", updated.ID.String(),
		"actor_id", adminID.String(),
		"assigned_to", in.OfficerID.String(),
		"points", strconv.Itoa(points))
	if s.metrics != nil {
		s.metrics.CasesApproved.Inc()
		s.metrics.PointsAwarded.Add(float64(points))
	}
	return updated, nil
}

// Reject closes the case without awarding points. The incentive record only
// gains an audit entry; points stay at 0 so a rejected report never earns.
func (s *Service) Reject(ctx context.Context, caseID id.CaseID, reason string) (*casemodels.Case, error) {
	adminID, err := requireRole(ctx, identity.RoleAssemblyAdmin, "reject")
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}

	now := requestcontext.Now(ctx)
	var updated *casemodels.Case
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		c, err := stores.Cases.Execute(ctx, caseID,
			func(c *casemodels.Case) error { return c.CanReject() },
			func(c *casemodels.Case) { c.ApplyRejection(adminID, reason, now) },
		)
		if err != nil {
			return translateCaseErr(err)
		}
		if err := s.ledger.NoteRejection(ctx, stores.Incentives, c.ReportID, adminID, reason, now); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventCaseRejected),
		"case_id", updated.ID.String(),
		"actor_id", adminID.String(),
		"reason", reason)
	if s.metrics != nil {
		s.metrics.CasesRejected.Inc()
	}
	return updated, nil
}

// Acknowledge is the officer's pickup of an approved case: approved→assigned.
// Only the officer the approval assigned may acknowledge; completion is only
// reachable after acknowledgement.
func (s *Service) Acknowledge(ctx context.Context, caseID id.CaseID) (*casemodels.Case, error) {
	officerID, err := requireRole(ctx, identity.RoleEnforcementOfficer, "acknowledge")
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *casemodels.Case
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		c, err := stores.Cases.Execute(ctx, caseID,
			func(c *casemodels.Case) error { return c.CanAcknowledge(officerID) },
			func(c *casemodels.Case) { c.ApplyAcknowledgement(officerID, now) },
		)
		if err != nil {
			return translateCaseErr(err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventCaseAcknowledged),
		"case_id", updated.ID.String(),
		"actor_id", officerID.String())
	return updated, nil
}

// Complete records enforcement: assigned→completed with an evidence
// reference. Only the assigned officer may complete.
func (s *Service) Complete(ctx context.Context, caseID id.CaseID, evidenceRef string) (*casemodels.Case, error) {
	officerID, err := requireRole(ctx, identity.RoleEnforcementOfficer, "complete")
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *casemodels.Case
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		c, err := stores.Cases.Execute(ctx, caseID,
			func(c *casemodels.Case) error { return c.CanComplete(officerID) },
			func(c *casemodels.Case) { c.ApplyCompletion(officerID, evidenceRef, now) },
		)
		if err != nil {
			return translateCaseErr(err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventCaseCompleted),
		"case_id", updated.ID.String(),
		"actor_id", officerID.String())
	if s.metrics != nil {
		s.metrics.CasesCompleted.Inc()
	}
	return updated, nil
}

func (s *Service) enrich(ctx context.Context, c *casemodels.Case) (*CaseView, error) {
	report, err := s.reports.FindByID(ctx, c.ReportID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case report")
	}
	view := &CaseView{
		Case:      c,
		Category:  report.Category,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
	}
	inc, err := s.incentives.FindByReportID(ctx, c.ReportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return view, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case incentive")
	}
	view.PointsEarned = inc.Points
	return view, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID: attrs.ExtractString(attributes, "actor_id"),
		Subject: attrs.ExtractString(attributes, "case_id"),
		Action:  event,
		Reason:  attrs.ExtractString(attributes, "reason"),
	})
}

// requireRole checks the authenticated actor carries the role a workflow
// operation demands. Actor identity is trusted from the auth middleware;
// role-appropriate preconditions are enforced here.
func requireRole(ctx context.Context, role identity.Role, action string) (id.UserID, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID.IsZero() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if requestcontext.Role(ctx) != role.String() {
		return id.UserID{}, dErrors.Newf(dErrors.CodeForbidden, "%s requires the %s role", action, role)
	}
	return actorID, nil
}

func translateCaseErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "case is not in a valid state for this transition")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "case store failure")
}

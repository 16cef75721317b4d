// Package service implements report intake. Submission is the workflow's
// entry point: one transaction creates the report, its case at submitted,
// and its zero-point pending incentive, so no report ever exists without
// the paired records the workflow depends on.
package service

import (
	"context"
	"errors"
	"log/slog"

	"sanitrack/internal/audit"
	casemodels "sanitrack/internal/cases/models"
	identity "sanitrack/internal/identity/models"
	incentivemodels "sanitrack/internal/incentive/models"
	"sanitrack/internal/platform/metrics"
	"sanitrack/internal/report/models"
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

// ReportStore is the persistence surface for reports. Reports are immutable
// once created.
type ReportStore interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	ListByOwner(ctx context.Context, ownerID id.UserID, filter models.ListFilter, limit, offset int) ([]*models.Report, int, error)
	AggregateByLocation(ctx context.Context, box models.BoundingBox, category models.Category) ([]models.LocationBucket, error)
}

// CaseStore covers the case operations submission and read enrichment need.
type CaseStore interface {
	Create(ctx context.Context, c *casemodels.Case) error
	FindByReportID(ctx context.Context, reportID id.ReportID) (*casemodels.Case, error)
}

// IncentiveStore covers the incentive operations submission and read
// enrichment need.
type IncentiveStore interface {
	Create(ctx context.Context, inc *incentivemodels.Incentive) error
	FindByReportID(ctx context.Context, reportID id.ReportID) (*incentivemodels.Incentive, error)
}

// Stores bundles the transaction-bound stores submission writes.
type Stores struct {
	Reports    ReportStore
	Cases      CaseStore
	Incentives IncentiveStore
}

// StoreTx runs fn inside one transaction; a non-nil error rolls every
// write back.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// AuditPublisher receives operational audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service handles report submission and citizen-facing reads.
type Service struct {
	tx             StoreTx
	reports        ReportStore
	cases          CaseStore
	incentives     IncentiveStore
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

// New constructs a Service. reports/cases/incentives are the read-path
// stores; tx hands out their transaction-bound counterparts for submission.
func New(tx StoreTx, reports ReportStore, cases CaseStore, incentives IncentiveStore, opts ...Option) *Service {
	s := &Service{tx: tx, reports: reports, cases: cases, incentives: incentives}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportView is a report enriched with its case status and awarded points,
// the shape the citizen endpoints return.
type ReportView struct {
	Report       *models.Report    `json:"report"`
	CaseStatus   casemodels.Status `json:"case_status"`
	PointsEarned int               `json:"points_earned"`
}

// ReportList is one page of report views plus the unpaginated total.
type ReportList struct {
	Reports []ReportView `json:"reports"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// Submit validates and persists a new violation report together with its
// case (submitted) and incentive (0 points, pending). All three commit or
// none do.
func (s *Service) Submit(ctx context.Context, in models.NewReportInput) (*ReportView, error) {
	ownerID := requestcontext.ActorID(ctx)
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	now := requestcontext.Now(ctx)

	report, err := models.NewReport(id.NewReportID(), ownerID, in, now)
	if err != nil {
		return nil, err
	}
	c, err := casemodels.NewCase(id.NewCaseID(), report.ID, now)
	if err != nil {
		return nil, err
	}
	inc, err := incentivemodels.NewIncentive(id.NewIncentiveID(), ownerID, report.ID, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		if err := stores.Reports.Create(ctx, report); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save report")
		}
		if err := stores.Cases.Create(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open case")
		}
		if err := stores.Incentives.Create(ctx, inc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open incentive record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventReportSubmitted),
		"report_id", report.ID.String(),
		"actor_id", ownerID.String(),
		"category", string(report.Category))
	if s.metrics != nil {
		s.metrics.ReportsSubmitted.Inc()
	}
	return &ReportView{Report: report, CaseStatus: c.Status, PointsEarned: inc.Points}, nil
}

// Get returns one report with its case status and points. Citizens see only
// their own reports; admins and officers see any.
func (s *Service) Get(ctx context.Context, reportID id.ReportID) (*ReportView, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	actorID := requestcontext.ActorID(ctx)
	role := requestcontext.Role(ctx)
	if report.OwnerID != actorID && role == identity.RoleCitizen.String() {
		return nil, dErrors.New(dErrors.CodeForbidden, "reports are visible to their owner only")
	}
	return s.enrich(ctx, report)
}

// List returns the actor's own reports, newest first, with optional
// category and captured-at range filters.
func (s *Service) List(ctx context.Context, filter models.ListFilter, limit, offset int) (*ReportList, error) {
	ownerID := requestcontext.ActorID(ctx)
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown category %q", filter.Category)
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

	reports, total, err := s.reports.ListByOwner(ctx, ownerID, filter, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	list := &ReportList{Reports: make([]ReportView, 0, len(reports)), Total: total, Limit: limit, Offset: offset}
	for _, report := range reports {
		view, err := s.enrich(ctx, report)
		if err != nil {
			return nil, err
		}
		list.Reports = append(list.Reports, *view)
	}
	return list, nil
}

// AggregateByLocation groups reports inside a bounding box by coordinate,
// optionally narrowed to one category. Read-only; used for hotspot maps.
func (s *Service) AggregateByLocation(ctx context.Context, box models.BoundingBox, category models.Category) ([]models.LocationBucket, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if category != "" && !category.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown category %q", category)
	}
	buckets, err := s.reports.AggregateByLocation(ctx, box, category)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate reports")
	}
	return buckets, nil
}

func (s *Service) enrich(ctx context.Context, report *models.Report) (*ReportView, error) {
	view := &ReportView{Report: report}
	c, err := s.cases.FindByReportID(ctx, report.ID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report case")
		}
	} else {
		view.CaseStatus = c.Status
	}
	inc, err := s.incentives.FindByReportID(ctx, report.ID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report incentive")
		}
	} else {
		view.PointsEarned = inc.Points
	}
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
		Subject: attrs.ExtractString(attributes, "report_id"),
		Action:  event,
	})
}

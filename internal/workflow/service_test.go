package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sanitrack/internal/audit"
	casemodels "sanitrack/internal/cases/models"
	casestore "sanitrack/internal/cases/store"
	identity "sanitrack/internal/identity/models"
	userstore "sanitrack/internal/identity/store"
	incentivemodels "sanitrack/internal/incentive/models"
	incentiveservice "sanitrack/internal/incentive/service"
	incentivestore "sanitrack/internal/incentive/store"
	reportmodels "sanitrack/internal/report/models"
	reportstore "sanitrack/internal/report/store"
	"sanitrack/internal/workflow"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/requestcontext"
)

type trio struct {
	report    *reportmodels.Report
	kase      *casemodels.Case
	incentive *incentivemodels.Incentive
}

type fixture struct {
	cases      *casestore.InMemory
	incentives *incentivestore.InMemory
	reports    *reportstore.InMemory
	users      *userstore.InMemory
	audits     *audit.InMemoryStore
	svc        *workflow.Service

	admin   *identity.User
	officer *identity.User
	citizen *identity.User

	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cases:      casestore.NewInMemory(),
		incentives: incentivestore.NewInMemory(),
		reports:    reportstore.NewInMemory(),
		users:      userstore.NewInMemory(),
		audits:     audit.NewInMemoryStore(),
		now:        time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	f.admin = f.addUser(t, identity.RoleAssemblyAdmin, "+233240000001")
	f.officer = f.addUser(t, identity.RoleEnforcementOfficer, "+233240000002")
	f.citizen = f.addUser(t, identity.RoleCitizen, "+233240000003")

	tx := workflow.NewInMemoryStoreTx(
		workflow.Stores{Cases: f.cases, Incentives: f.incentives},
		f.cases, f.incentives,
	)
	ledger := incentiveservice.NewLedger(incentiveservice.NewPolicy(10))
	f.svc = workflow.New(tx, f.cases, f.incentives, f.reports, f.users, ledger,
		workflow.WithAuditPublisher(audit.NewPublisher(f.audits)))
	return f
}

func (f *fixture) addUser(t *testing.T, role identity.Role, phone string) *identity.User {
	t.Helper()
	u, err := identity.NewUser(id.NewUserID(), phone, role, f.now)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// addCase seeds the report, case, and pending incentive a submission creates.
func (f *fixture) addCase(t *testing.T) trio {
	t.Helper()
	ctx := context.Background()

	report, err := reportmodels.NewReport(id.NewReportID(), f.citizen.ID, reportmodels.NewReportInput{
		Category:   reportmodels.CategoryPlasticDumping,
		Latitude:   5.6037,
		Longitude:  -0.1870,
		CapturedAt: f.now.Add(-time.Minute),
		PhotoURLs:  []string{"https://media.example/evidence.jpg"},
	}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.reports.Create(ctx, report))

	kase, err := casemodels.NewCase(id.NewCaseID(), report.ID, f.now)
	require.NoError(t, err)
	require.NoError(t, f.cases.Create(ctx, kase))

	incentive, err := incentivemodels.NewIncentive(id.NewIncentiveID(), f.citizen.ID, report.ID, f.now)
	require.NoError(t, err)
	require.NoError(t, f.incentives.Create(ctx, incentive))

	return trio{report: report, kase: kase, incentive: incentive}
}

func (f *fixture) as(u *identity.User) context.Context {
	ctx := requestcontext.WithActor(context.Background(), u.ID, u.Role.String())
	return requestcontext.WithTime(ctx, f.now)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	updated, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{
		OfficerID: f.officer.ID,
		Notes:     "confirmed on site",
	})
	require.NoError(t, err)

	require.Equal(t, casemodels.StatusApproved, updated.Status)
	require.NotNil(t, updated.AssignedTo)
	require.Equal(t, f.officer.ID, *updated.AssignedTo)
	require.NotNil(t, updated.ApprovedBy)
	require.Equal(t, f.admin.ID, *updated.ApprovedBy)
	require.Equal(t, "confirmed on site", updated.ApprovalNotes)
	require.Len(t, updated.StatusHistory, 1)
	require.Equal(t, casemodels.StatusApproved, updated.StatusHistory[0].Status)

	inc, err := f.incentives.FindByReportID(context.Background(), tr.report.ID)
	require.NoError(t, err)
	require.Equal(t, 10, inc.Points)
	require.Equal(t, incentivemodels.StatusEarned, inc.Status)
	require.NotNil(t, inc.CaseID)
	require.Equal(t, tr.kase.ID, *inc.CaseID)
	require.Len(t, inc.AuditLog, 1)
	require.Equal(t, incentivemodels.ActionPointsAwarded, inc.AuditLog[0].Action)

	events := f.audits.All()
	require.Len(t, events, 1)
	require.Equal(t, string(audit.EventCaseApproved), events[0].Action)
	require.Equal(t, f.admin.ID.String(), events[0].ActorID)
	require.Equal(t, tr.kase.ID.String(), events[0].Subject)
}

func TestApproveAwardsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)
	in := workflow.ApproveInput{OfficerID: f.officer.ID}

	_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, in)
	require.NoError(t, err)

	_, err = f.svc.Approve(f.as(f.admin), tr.kase.ID, in)
	require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	inc, err := f.incentives.FindByReportID(context.Background(), tr.report.ID)
	require.NoError(t, err)
	require.Equal(t, 10, inc.Points)
	require.Len(t, inc.AuditLog, 1)
}

func TestApproveAuthorization(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)
	in := workflow.ApproveInput{OfficerID: f.officer.ID}

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.svc.Approve(context.Background(), tr.kase.ID, in)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("citizen cannot approve", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.citizen), tr.kase.ID, in)
		require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("officer cannot approve", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.officer), tr.kase.ID, in)
		require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestApproveAssignmentValidation(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	t.Run("unknown officer", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: id.NewUserID()})
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("citizen cannot be assigned", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.citizen.ID})
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown case", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.admin), id.NewCaseID(), workflow.ApproveInput{OfficerID: f.officer.ID})
		require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	t.Run("requires a reason", func(t *testing.T) {
		_, err := f.svc.Reject(f.as(f.admin), tr.kase.ID, "")
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	updated, err := f.svc.Reject(f.as(f.admin), tr.kase.ID, "duplicate of an existing report")
	require.NoError(t, err)
	require.Equal(t, casemodels.StatusRejected, updated.Status)
	require.Len(t, updated.StatusHistory, 1)
	require.Equal(t, "duplicate of an existing report", updated.StatusHistory[0].Reason)

	// Rejection never earns: points stay 0 and the record stays pending,
	// but the decision is still on the incentive's audit log.
	inc, err := f.incentives.FindByReportID(context.Background(), tr.report.ID)
	require.NoError(t, err)
	require.Equal(t, 0, inc.Points)
	require.Equal(t, incentivemodels.StatusPending, inc.Status)
	require.Len(t, inc.AuditLog, 1)
	require.Equal(t, incentivemodels.ActionCaseRejected, inc.AuditLog[0].Action)

	t.Run("rejected is terminal", func(t *testing.T) {
		_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	t.Run("only after approval", func(t *testing.T) {
		_, err := f.svc.Acknowledge(f.as(f.officer), tr.kase.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
	require.NoError(t, err)

	t.Run("only by the assigned officer", func(t *testing.T) {
		other := f.addUser(t, identity.RoleEnforcementOfficer, "+233240000009")
		_, err := f.svc.Acknowledge(f.as(other), tr.kase.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	updated, err := f.svc.Acknowledge(f.as(f.officer), tr.kase.ID)
	require.NoError(t, err)
	require.Equal(t, casemodels.StatusAssigned, updated.Status)
	require.Len(t, updated.StatusHistory, 2)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
	require.NoError(t, err)

	t.Run("must wait for acknowledgement", func(t *testing.T) {
		_, err := f.svc.Complete(f.as(f.officer), tr.kase.ID, "evidence/001.jpg")
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	_, err = f.svc.Acknowledge(f.as(f.officer), tr.kase.ID)
	require.NoError(t, err)

	t.Run("only by the assigned officer", func(t *testing.T) {
		other := f.addUser(t, identity.RoleEnforcementOfficer, "+233240000008")
		_, err := f.svc.Complete(f.as(other), tr.kase.ID, "evidence/001.jpg")
		require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	updated, err := f.svc.Complete(f.as(f.officer), tr.kase.ID, "evidence/001.jpg")
	require.NoError(t, err)
	require.Equal(t, casemodels.StatusCompleted, updated.Status)
	require.Equal(t, "evidence/001.jpg", updated.CompletionEvidence)
	require.NotNil(t, updated.CompletedAt)
	require.Len(t, updated.StatusHistory, 3)
	require.Equal(t, casemodels.StatusCompleted, updated.StatusHistory[2].Status)
}

// failingIncentives forces the award write to fail so the surrounding
// transaction has something to roll back.
type failingIncentives struct {
	*incentivestore.InMemory
}

func (s *failingIncentives) Update(ctx context.Context, inc *incentivemodels.Incentive) error {
	return errors.New("storage unavailable")
}

func TestApproveRollsBackWhenAwardFails(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	tx := workflow.NewInMemoryStoreTx(
		workflow.Stores{Cases: f.cases, Incentives: &failingIncentives{f.incentives}},
		f.cases, f.incentives,
	)
	ledger := incentiveservice.NewLedger(incentiveservice.NewPolicy(10))
	svc := workflow.New(tx, f.cases, f.incentives, f.reports, f.users, ledger)

	_, err := svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
	require.Error(t, err)

	// The case transition must not survive the failed award.
	c, err := f.cases.FindByID(context.Background(), tr.kase.ID)
	require.NoError(t, err)
	require.Equal(t, casemodels.StatusSubmitted, c.Status)
	require.Empty(t, c.StatusHistory)

	inc, err := f.incentives.FindByReportID(context.Background(), tr.report.ID)
	require.NoError(t, err)
	require.Equal(t, 0, inc.Points)
	require.Equal(t, incentivemodels.StatusPending, inc.Status)
}

func TestConcurrentApprovalsAwardOnce(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	var g errgroup.Group
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	}
	require.Equal(t, 1, succeeded)

	inc, err := f.incentives.FindByReportID(context.Background(), tr.report.ID)
	require.NoError(t, err)
	require.Equal(t, 10, inc.Points)
	require.Len(t, inc.AuditLog, 1)
}

func TestGetCase(t *testing.T) {
	f := newFixture(t)
	tr := f.addCase(t)

	view, err := f.svc.GetCase(f.as(f.admin), tr.kase.ID)
	require.NoError(t, err)
	require.Equal(t, tr.kase.ID, view.Case.ID)
	require.Equal(t, reportmodels.CategoryPlasticDumping, view.Category)
	require.InDelta(t, 5.6037, view.Latitude, 1e-9)
	require.InDelta(t, -0.1870, view.Longitude, 1e-9)
	require.Equal(t, 0, view.PointsEarned)

	_, err = f.svc.Approve(f.as(f.admin), tr.kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
	require.NoError(t, err)

	view, err = f.svc.GetCase(f.as(f.admin), tr.kase.ID)
	require.NoError(t, err)
	require.Equal(t, 10, view.PointsEarned)

	_, err = f.svc.GetCase(f.as(f.admin), id.NewCaseID())
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestListCases(t *testing.T) {
	f := newFixture(t)

	var trios []trio
	for i := 0; i < 3; i++ {
		trios = append(trios, f.addCase(t))
	}
	_, err := f.svc.Approve(f.as(f.admin), trios[1].kase.ID, workflow.ApproveInput{OfficerID: f.officer.ID})
	require.NoError(t, err)
	_, err = f.svc.Reject(f.as(f.admin), trios[2].kase.ID, "not a violation")
	require.NoError(t, err)

	t.Run("default filter is the review queue", func(t *testing.T) {
		list, err := f.svc.ListCases(f.as(f.admin), nil, 0, 0)
		require.NoError(t, err)
		require.Equal(t, 2, list.Total)
		require.Len(t, list.Cases, 2)
		for _, v := range list.Cases {
			require.Contains(t,
				[]casemodels.Status{casemodels.StatusSubmitted, casemodels.StatusApproved},
				v.Case.Status)
		}
	})

	t.Run("explicit status filter", func(t *testing.T) {
		list, err := f.svc.ListCases(f.as(f.admin), []casemodels.Status{casemodels.StatusRejected}, 0, 0)
		require.NoError(t, err)
		require.Equal(t, 1, list.Total)
		require.Equal(t, trios[2].kase.ID, list.Cases[0].Case.ID)
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		_, err := f.svc.ListCases(f.as(f.admin), []casemodels.Status{"archived"}, 0, 0)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("caps the page size", func(t *testing.T) {
		list, err := f.svc.ListCases(f.as(f.admin), []casemodels.Status{casemodels.StatusSubmitted}, 500, 0)
		require.NoError(t, err)
		require.Equal(t, 100, list.Limit)
	})
}

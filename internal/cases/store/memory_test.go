package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sanitrack/internal/cases/models"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/platform/sentinel"
)

type CaseStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestCaseStoreSuite(t *testing.T) {
	suite.Run(t, new(CaseStoreSuite))
}

func (s *CaseStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *CaseStoreSuite) newCase() *models.Case {
	c, err := models.NewCase(id.NewCaseID(), id.NewReportID(), time.Now().UTC())
	s.Require().NoError(err)
	return c
}

func (s *CaseStoreSuite) TestCreateAndLookups() {
	s.Run("creates and finds by id and report id", func() {
		c := s.newCase()
		s.Require().NoError(s.store.Create(s.ctx, c))

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, found.ID)

		found, err = s.store.FindByReportID(s.ctx, c.ReportID)
		s.Require().NoError(err)
		s.Equal(c.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown ids", func() {
		_, err := s.store.FindByID(s.ctx, id.NewCaseID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByReportID(s.ctx, id.NewReportID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a second case for the same report", func() {
		c := s.newCase()
		s.Require().NoError(s.store.Create(s.ctx, c))

		dup, err := models.NewCase(id.NewCaseID(), c.ReportID, time.Now().UTC())
		s.Require().NoError(err)
		s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("hands out clones", func() {
		c := s.newCase()
		s.Require().NoError(s.store.Create(s.ctx, c))

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		found.Status = models.StatusCompleted

		again, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, again.Status)
	})
}

func (s *CaseStoreSuite) TestExecute() {
	adminID := id.NewUserID()
	officerID := id.NewUserID()

	s.Run("applies validate then mutate atomically", func() {
		c := s.newCase()
		s.Require().NoError(s.store.Create(s.ctx, c))

		updated, err := s.store.Execute(s.ctx, c.ID,
			func(c *models.Case) error { return c.CanApprove() },
			func(c *models.Case) { c.ApplyApproval(adminID, officerID, "", time.Now().UTC()) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, updated.Status)

		persisted, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, persisted.Status)
	})

	s.Run("a failed validate leaves the case untouched", func() {
		c := s.newCase()
		s.Require().NoError(s.store.Create(s.ctx, c))

		_, err := s.store.Execute(s.ctx, c.ID,
			func(c *models.Case) error { return dErrors.New(dErrors.CodeValidation, "nope") },
			func(c *models.Case) { c.ApplyApproval(adminID, officerID, "", time.Now().UTC()) },
		)
		s.Require().Error(err)

		persisted, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, persisted.Status)
		s.Empty(persisted.StatusHistory)
	})

	s.Run("unknown case id", func() {
		_, err := s.store.Execute(s.ctx, id.NewCaseID(),
			func(c *models.Case) error { return nil },
			func(c *models.Case) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CaseStoreSuite) TestList() {
	adminID := id.NewUserID()
	officerID := id.NewUserID()

	submitted := make([]*models.Case, 3)
	for i := range submitted {
		c, err := models.NewCase(id.NewCaseID(), id.NewReportID(), time.Now().UTC().Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, c))
		submitted[i] = c
	}
	approved := s.newCase()
	approved.ApplyApproval(adminID, officerID, "", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, approved))

	s.Run("filters by status", func() {
		cases, total, err := s.store.List(s.ctx, []models.Status{models.StatusSubmitted}, 10, 0)
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Len(cases, 3)

		cases, total, err = s.store.List(s.ctx, []models.Status{models.StatusApproved}, 10, 0)
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Require().Len(cases, 1)
		s.Equal(approved.ID, cases[0].ID)
	})

	s.Run("paginates with a stable total", func() {
		cases, total, err := s.store.List(s.ctx, []models.Status{models.StatusSubmitted}, 2, 0)
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Len(cases, 2)

		cases, total, err = s.store.List(s.ctx, []models.Status{models.StatusSubmitted}, 2, 2)
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Len(cases, 1)
	})

	s.Run("newest first", func() {
		cases, _, err := s.store.List(s.ctx, []models.Status{models.StatusSubmitted}, 10, 0)
		s.Require().NoError(err)
		s.Require().Len(cases, 3)
		s.Equal(submitted[2].ID, cases[0].ID)
		s.Equal(submitted[0].ID, cases[2].ID)
	})
}

func (s *CaseStoreSuite) TestSnapshotRestore() {
	c := s.newCase()
	s.Require().NoError(s.store.Create(s.ctx, c))

	snap := s.store.Snapshot()

	_, err := s.store.Execute(s.ctx, c.ID,
		func(c *models.Case) error { return c.CanApprove() },
		func(c *models.Case) { c.ApplyApproval(id.NewUserID(), id.NewUserID(), "", time.Now().UTC()) },
	)
	s.Require().NoError(err)

	s.store.Restore(snap)

	persisted, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, persisted.Status)
}

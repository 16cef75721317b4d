package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sanitrack/internal/incentive/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

type IncentiveStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestIncentiveStoreSuite(t *testing.T) {
	suite.Run(t, new(IncentiveStoreSuite))
}

func (s *IncentiveStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *IncentiveStoreSuite) newIncentive(citizenID id.UserID) *models.Incentive {
	inc, err := models.NewIncentive(id.NewIncentiveID(), citizenID, id.NewReportID(), time.Now().UTC())
	s.Require().NoError(err)
	return inc
}

func (s *IncentiveStoreSuite) TestCreateAndLookups() {
	s.Run("creates and finds by report id", func() {
		inc := s.newIncentive(id.NewUserID())
		s.Require().NoError(s.store.Create(s.ctx, inc))

		found, err := s.store.FindByReportID(s.ctx, inc.ReportID)
		s.Require().NoError(err)
		s.Equal(inc.ID, found.ID)
	})

	s.Run("rejects a second incentive for the same report", func() {
		inc := s.newIncentive(id.NewUserID())
		s.Require().NoError(s.store.Create(s.ctx, inc))

		dup, err := models.NewIncentive(id.NewIncentiveID(), inc.CitizenID, inc.ReportID, time.Now().UTC())
		s.Require().NoError(err)
		s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown report", func() {
		_, err := s.store.FindByReportID(s.ctx, id.NewReportID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *IncentiveStoreSuite) TestUpdate() {
	inc := s.newIncentive(id.NewUserID())
	s.Require().NoError(s.store.Create(s.ctx, inc))

	inc.ApplyAward(id.NewCaseID(), 10, id.NewUserID(), time.Now().UTC())
	s.Require().NoError(s.store.Update(s.ctx, inc))

	found, err := s.store.FindByID(s.ctx, inc.ID)
	s.Require().NoError(err)
	s.Equal(10, found.Points)
	s.Equal(models.StatusEarned, found.Status)
	s.Len(found.AuditLog, 1)
}

func (s *IncentiveStoreSuite) TestListByCitizen() {
	citizenID := id.NewUserID()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Create(s.ctx, s.newIncentive(citizenID)))
	}
	s.Require().NoError(s.store.Create(s.ctx, s.newIncentive(id.NewUserID())))

	incentives, err := s.store.ListByCitizen(s.ctx, citizenID)
	s.Require().NoError(err)
	s.Len(incentives, 3)
}

func (s *IncentiveStoreSuite) TestSnapshotRestore() {
	inc := s.newIncentive(id.NewUserID())
	s.Require().NoError(s.store.Create(s.ctx, inc))

	snap := s.store.Snapshot()

	inc.ApplyAward(id.NewCaseID(), 10, id.NewUserID(), time.Now().UTC())
	s.Require().NoError(s.store.Update(s.ctx, inc))

	s.store.Restore(snap)

	found, err := s.store.FindByID(s.ctx, inc.ID)
	s.Require().NoError(err)
	s.Equal(0, found.Points)
	s.Equal(models.StatusPending, found.Status)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
)

func newTestCase(t *testing.T) *Case {
	t.Helper()
	c, err := NewCase(id.NewCaseID(), id.NewReportID(), time.Now().UTC())
	require.NoError(t, err)
	return c
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusApproved, StatusAssigned, true},
		{StatusAssigned, StatusCompleted, true},
		{StatusSubmitted, StatusCompleted, false},
		{StatusSubmitted, StatusAssigned, false},
		{StatusApproved, StatusCompleted, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusCompleted, StatusAssigned, false},
		{StatusCompleted, StatusSubmitted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.False(t, StatusAssigned.Terminal())
}

func TestNewCase(t *testing.T) {
	now := time.Now().UTC()
	c, err := NewCase(id.NewCaseID(), id.NewReportID(), now)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, c.Status)
	assert.Empty(t, c.StatusHistory, "history begins at the first transition, not at creation")
	assert.Nil(t, c.AssignedTo)

	_, err = NewCase(id.NewCaseID(), id.ReportID{}, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestApprovalLifecycle(t *testing.T) {
	c := newTestCase(t)
	adminID := id.NewUserID()
	officerID := id.NewUserID()
	now := time.Now().UTC()

	require.NoError(t, c.CanApprove())
	c.ApplyApproval(adminID, officerID, "verified on site", now)

	assert.Equal(t, StatusApproved, c.Status)
	require.NotNil(t, c.AssignedTo)
	assert.Equal(t, officerID, *c.AssignedTo)
	require.NotNil(t, c.ApprovedBy)
	assert.Equal(t, adminID, *c.ApprovedBy)
	require.NotNil(t, c.ApprovedAt)
	require.Len(t, c.StatusHistory, 1)
	assert.Equal(t, StatusApproved, c.StatusHistory[0].Status)
	assert.Equal(t, adminID, c.StatusHistory[0].ChangedBy)

	// Second approval is illegal: the case left submitted.
	err := c.CanApprove()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRejectionIsTerminal(t *testing.T) {
	c := newTestCase(t)
	adminID := id.NewUserID()
	now := time.Now().UTC()

	require.NoError(t, c.CanReject())
	c.ApplyRejection(adminID, "insufficient evidence", now)

	assert.Equal(t, StatusRejected, c.Status)
	assert.Equal(t, "insufficient evidence", c.ApprovalNotes)
	require.Len(t, c.StatusHistory, 1)
	assert.Equal(t, "insufficient evidence", c.StatusHistory[0].Reason)

	err := c.CanApprove()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	require.Error(t, c.CanReject())
}

func TestAcknowledgement(t *testing.T) {
	adminID := id.NewUserID()
	officerID := id.NewUserID()
	otherOfficer := id.NewUserID()
	now := time.Now().UTC()

	t.Run("requires approved status", func(t *testing.T) {
		c := newTestCase(t)
		err := c.CanAcknowledge(officerID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("only the assigned officer may acknowledge", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyApproval(adminID, officerID, "", now)
		err := c.CanAcknowledge(otherOfficer)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("assigned officer acknowledges", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyApproval(adminID, officerID, "", now)
		require.NoError(t, c.CanAcknowledge(officerID))
		c.ApplyAcknowledgement(officerID, now)
		assert.Equal(t, StatusAssigned, c.Status)
		require.Len(t, c.StatusHistory, 2)
		assert.Equal(t, StatusAssigned, c.StatusHistory[1].Status)
	})
}

func TestCompletion(t *testing.T) {
	adminID := id.NewUserID()
	officerID := id.NewUserID()
	otherOfficer := id.NewUserID()
	now := time.Now().UTC()

	t.Run("wrong officer is forbidden even in the wrong status", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyApproval(adminID, officerID, "", now)
		err := c.CanComplete(otherOfficer)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("assigned officer must wait for acknowledgement", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyApproval(adminID, officerID, "", now)
		err := c.CanComplete(officerID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("full lifecycle records one history entry per transition", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyApproval(adminID, officerID, "notes", now)
		c.ApplyAcknowledgement(officerID, now.Add(time.Minute))
		require.NoError(t, c.CanComplete(officerID))
		c.ApplyCompletion(officerID, "evidence://photo-1", now.Add(2*time.Minute))

		assert.Equal(t, StatusCompleted, c.Status)
		require.NotNil(t, c.CompletedAt)
		assert.Equal(t, "evidence://photo-1", c.CompletionEvidence)
		require.Len(t, c.StatusHistory, 3)
		assert.Equal(t, StatusApproved, c.StatusHistory[0].Status)
		assert.Equal(t, StatusAssigned, c.StatusHistory[1].Status)
		assert.Equal(t, StatusCompleted, c.StatusHistory[2].Status)
		// Last history entry always matches the current status.
		assert.Equal(t, c.Status, c.StatusHistory[len(c.StatusHistory)-1].Status)
	})
}

func TestCloneIsDeep(t *testing.T) {
	c := newTestCase(t)
	c.ApplyApproval(id.NewUserID(), id.NewUserID(), "", time.Now().UTC())

	clone := c.Clone()
	clone.ApplyAcknowledgement(*c.AssignedTo, time.Now().UTC())

	assert.Equal(t, StatusApproved, c.Status)
	assert.Len(t, c.StatusHistory, 1)
	assert.Len(t, clone.StatusHistory, 2)
}

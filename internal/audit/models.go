package audit

import "time"

// EventType names a workflow action worth keeping an operational trail of.
type EventType string

const (
	EventReportSubmitted  EventType = "report.submitted"
	EventCaseApproved     EventType = "case.approved"
	EventCaseRejected     EventType = "case.rejected"
	EventCaseAcknowledged EventType = "case.acknowledged"
	EventCaseCompleted    EventType = "case.completed"
	EventPointsAwarded    EventType = "incentive.points_awarded"
	EventOTPIssued        EventType = "auth.otp_issued"
	EventLogin            EventType = "auth.login"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	ActorID   string
	Action    string
	Subject   string
	Reason    string
}

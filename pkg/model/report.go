package model

import "time"

// Cancellation reasons. ReasonsRequiringDetails must carry free-text details;
// missing details is a validation error, not a ledger error.
const (
	ReasonInstructorUnavailable = "instructor_unavailable"
	ReasonVenueUnavailable      = "venue_unavailable"
	ReasonLowEnrollment         = "low_enrollment"
	ReasonWeather               = "weather"
	ReasonOther                 = "other"
)

// CancellationReasons is the fixed list accepted by the orchestrator.
var CancellationReasons = []string{
	ReasonInstructorUnavailable,
	ReasonVenueUnavailable,
	ReasonLowEnrollment,
	ReasonWeather,
	ReasonOther,
}

// ReasonRequiresDetails reports whether free-text details are mandatory for
// the given reason.
func ReasonRequiresDetails(reason string) bool {
	return reason == ReasonWeather || reason == ReasonOther
}

// Cancellation orchestration states. CancelFailed is retryable back into
// cancelling; cancelled is terminal.
const (
	CancelRequested = "cancel_requested"
	Cancelling      = "cancelling"
	CancelDone      = "cancelled"
	CancelFailed    = "cancel_failed"
)

// AttendeeFailure names one attendee whose refund or notification did not go
// through. Operators retry these individually; the session itself still
// reaches cancelled.
type AttendeeFailure struct {
	BookingID    string `json:"booking_id" bson:"booking_id"`
	ContactEmail string `json:"contact_email" bson:"contact_email"`
	Stage        string `json:"stage" bson:"stage"` // "refund" or "notification"
	Reason       string `json:"reason" bson:"reason"`
}

// CancellationReport is the structured outcome of cancelling a session.
// Persisted keyed by session id so re-invoking cancellation on an already
// cancelled session returns the original report, not a recomputed one.
type CancellationReport struct {
	SessionID         string            `json:"session_id" bson:"_id"`
	Reason            string            `json:"reason" bson:"reason"`
	Details           string            `json:"details,omitempty" bson:"details,omitempty"`
	State             string            `json:"state" bson:"state"`
	TotalAttendees    int               `json:"total_attendees" bson:"total_attendees"`
	SeatsReleased     int               `json:"seats_released" bson:"seats_released"`
	RefundsInitiated  int               `json:"refunds_initiated" bson:"refunds_initiated"`
	NotificationsSent int               `json:"notifications_sent" bson:"notifications_sent"`
	Failures          []AttendeeFailure `json:"failures,omitempty" bson:"failures,omitempty"`
	ProcessRefunds    bool              `json:"process_refunds" bson:"process_refunds"`
	SendNotifications bool              `json:"send_notifications" bson:"send_notifications"`
	StartedAt         time.Time         `json:"started_at" bson:"started_at"`
	CompletedAt       time.Time         `json:"completed_at" bson:"completed_at"`
}

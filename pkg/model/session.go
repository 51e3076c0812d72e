package model

import "time"

// Session statuses. Transitions are monotonic: scheduled -> in_progress ->
// completed, with cancelled reachable from any non-terminal state. Cancelled
// and completed are terminal.
const (
	SessionScheduled  = "scheduled"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
)

// MaxSessionCapacity is the hard business ceiling on seats per session.
const MaxSessionCapacity = 12

type Session struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	CourseType      string    `json:"course_type" bson:"course_type" validate:"required,min=2,max=100"`
	StartTime       time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Venue           string    `json:"venue" bson:"venue" validate:"required,min=2,max=200"`
	MaxCapacity     int       `json:"max_capacity" bson:"max_capacity" validate:"required,min=1,max=12"`
	CurrentBookings int       `json:"current_bookings" bson:"current_bookings" validate:"min=0"`
	PriceCents      int64     `json:"price_cents" bson:"price_cents" validate:"min=0"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Availability is the snapshot callers (and broadcast watchers) reason about.
type Availability struct {
	SessionID         string `json:"session_id" bson:"session_id"`
	Current           int    `json:"current" bson:"current"`
	Max               int    `json:"max" bson:"max"`
	Remaining         int    `json:"remaining" bson:"remaining"`
	ActiveIntentCount int    `json:"active_intent_count" bson:"active_intent_count"`
	ActiveIntentSpots int    `json:"active_intent_spots" bson:"active_intent_spots"`
}

// Terminal reports whether no further status transitions are allowed.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionCancelled
}

// CanTransitionTo enforces the monotonic status lifecycle.
func (s *Session) CanTransitionTo(next string) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case SessionInProgress:
		return s.Status == SessionScheduled
	case SessionCompleted:
		return s.Status == SessionInProgress
	case SessionCancelled:
		return true
	default:
		return false
	}
}

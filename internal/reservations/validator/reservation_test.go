package validator

import (
	"strings"
	"testing"
	"time"

	"coursebook/pkg/logger"
	"coursebook/pkg/model"
)

func newTestValidator(t *testing.T) *ReservationValidator {
	t.Helper()
	return NewReservationValidator(logger.New(logger.Config{Level: logger.ERROR}))
}

func validSession() *model.Session {
	start := time.Now().Add(24 * time.Hour)
	return &model.Session{
		CourseType:  "rock_climbing",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Venue:       "North Wall",
		MaxCapacity: 10,
		PriceCents:  4500,
		Status:      model.SessionScheduled,
	}
}

func TestValidateSession(t *testing.T) {
	v := newTestValidator(t)

	if err := v.ValidateSession(validSession()); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}

	t.Run("capacity above ceiling", func(t *testing.T) {
		s := validSession()
		s.MaxCapacity = 13
		if err := v.ValidateSession(s); err == nil {
			t.Error("expected error for max_capacity 13")
		}
	})

	t.Run("end before start", func(t *testing.T) {
		s := validSession()
		s.EndTime = s.StartTime.Add(-time.Hour)
		if err := v.ValidateSession(s); err == nil {
			t.Error("expected error for end_time before start_time")
		}
	})

	t.Run("start in past", func(t *testing.T) {
		s := validSession()
		s.StartTime = time.Now().Add(-time.Hour)
		s.EndTime = s.StartTime.Add(2 * time.Hour)
		if err := v.ValidateSession(s); err == nil {
			t.Error("expected error for past start_time")
		}
	})

	t.Run("bookings above capacity", func(t *testing.T) {
		s := validSession()
		s.CurrentBookings = 11
		if err := v.ValidateSession(s); err == nil {
			t.Error("expected error for current_bookings above max_capacity")
		}
	})
}

func TestValidateIntent(t *testing.T) {
	v := newTestValidator(t)

	intent := &model.BookingIntent{
		SessionID: "8f14e45f-ea2a-4c0e-9d2b-1a9c6f0e7b11",
		HolderKey: "visitor-42",
		Spots:     2,
	}
	if err := v.ValidateIntent(intent); err != nil {
		t.Fatalf("valid intent rejected: %v", err)
	}

	t.Run("zero spots", func(t *testing.T) {
		bad := *intent
		bad.Spots = 0
		if err := v.ValidateIntent(&bad); err == nil {
			t.Error("expected error for zero spots")
		}
	})

	t.Run("spots above ceiling", func(t *testing.T) {
		bad := *intent
		bad.Spots = 13
		if err := v.ValidateIntent(&bad); err == nil {
			t.Error("expected error for 13 spots")
		}
	})
}

func TestValidateCancellation(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name    string
		req     CancellationRequest
		wantErr bool
	}{
		{
			name: "instructor unavailable without details",
			req:  CancellationRequest{Reason: model.ReasonInstructorUnavailable},
		},
		{
			name: "weather with details",
			req:  CancellationRequest{Reason: model.ReasonWeather, Details: "storm warning"},
		},
		{
			name:    "weather without details",
			req:     CancellationRequest{Reason: model.ReasonWeather},
			wantErr: true,
		},
		{
			name:    "other with blank details",
			req:     CancellationRequest{Reason: model.ReasonOther, Details: "   "},
			wantErr: true,
		},
		{
			name:    "unknown reason",
			req:     CancellationRequest{Reason: "bored"},
			wantErr: true,
		},
		{
			name:    "missing reason",
			req:     CancellationRequest{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCancellation(&tt.req)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Reason", Message: "Reason is required"},
		{Field: "Details", Message: "too long"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 error(s)") {
		t.Errorf("unexpected message: %s", msg)
	}
}

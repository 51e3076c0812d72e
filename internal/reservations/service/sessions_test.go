package service

import (
	"context"
	"testing"
	"time"

	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/model"
)

func TestCreateSessionNormalizesAndClamps(t *testing.T) {
	f := newFixture()

	session := &model.Session{
		CourseType:  "  Rock Climbing 101 ",
		StartTime:   time.Now().Add(48 * time.Hour),
		EndTime:     time.Now().Add(50 * time.Hour),
		Venue:       "  North   Wall ",
		MaxCapacity: 40,
		PriceCents:  4500,
	}
	if err := f.sessionSvc.Create(context.Background(), session); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if session.CourseType != "rock_climbing_101" {
		t.Errorf("expected sanitized course type, got %q", session.CourseType)
	}
	if session.Venue != "North Wall" {
		t.Errorf("expected normalized venue, got %q", session.Venue)
	}
	if session.MaxCapacity != f.cfg.MaxSessionCapacity {
		t.Errorf("expected capacity clamped to %d, got %d", f.cfg.MaxSessionCapacity, session.MaxCapacity)
	}
	if session.Status != model.SessionScheduled || session.CurrentBookings != 0 {
		t.Errorf("unexpected defaults: %s %d", session.Status, session.CurrentBookings)
	}
}

func TestCreateSessionRejectsPastStart(t *testing.T) {
	f := newFixture()

	session := &model.Session{
		CourseType:  "kayaking",
		StartTime:   time.Now().Add(-time.Hour),
		EndTime:     time.Now().Add(time.Hour),
		Venue:       "Boathouse",
		MaxCapacity: 8,
	}
	err := f.sessionSvc.Create(context.Background(), session)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 0, 10, model.SessionScheduled)

	updated, err := f.sessionSvc.UpdateStatus(context.Background(), "sess-1", model.SessionInProgress)
	if err != nil {
		t.Fatalf("transition to in_progress failed: %v", err)
	}
	if updated.Status != model.SessionInProgress {
		t.Errorf("expected in_progress, got %s", updated.Status)
	}

	if _, err := f.sessionSvc.UpdateStatus(context.Background(), "sess-1", model.SessionScheduled); !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Errorf("expected INVALID_TRANSITION going backwards, got %v", err)
	}

	if _, err := f.sessionSvc.UpdateStatus(context.Background(), "sess-1", model.SessionCancelled); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for cancellation through status update, got %v", err)
	}
}

func TestUpdateStatusTerminalSession(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 0, 10, model.SessionCompleted)

	_, err := f.sessionSvc.UpdateStatus(context.Background(), "sess-1", model.SessionInProgress)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestGetAvailability(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 7, 10, model.SessionScheduled)

	avail, err := f.sessionSvc.GetAvailability(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if avail.Remaining != 3 {
		t.Errorf("expected 3 remaining, got %d", avail.Remaining)
	}

	if _, err := f.sessionSvc.GetAvailability(context.Background(), ""); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for blank id, got %v", err)
	}
}

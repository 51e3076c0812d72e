package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coursebook/internal/reservations/validator"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

func cancelRequest(reason string) *validator.CancellationRequest {
	return &validator.CancellationRequest{
		Reason:            reason,
		ProcessRefunds:    true,
		SendNotifications: true,
	}
}

func TestCancelSessionWithAttendees(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 8, 10, model.SessionScheduled)
	for i := 0; i < 8; i++ {
		f.seedBooking(fmt.Sprintf("book-%d", i), "sess-1", fmt.Sprintf("guest%d@example.com", i), 1, model.PaymentPaid)
	}

	// One attendee's refund fails; the session must still reach cancelled.
	f.payments.refundFunc = func(bookingID string, amountCents int64) (string, error) {
		if bookingID == "book-3" {
			return "", errors.New("gateway timeout")
		}
		return "refund-" + bookingID, nil
	}

	report, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonLowEnrollment))
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if report.State != model.CancelDone {
		t.Errorf("expected state %s, got %s", model.CancelDone, report.State)
	}
	if report.TotalAttendees != 8 || report.SeatsReleased != 8 {
		t.Errorf("unexpected attendee/seat tallies: %+v", report)
	}
	if report.RefundsInitiated != 7 || report.NotificationsSent != 8 {
		t.Errorf("expected 7 refunds and 8 notifications, got %d/%d", report.RefundsInitiated, report.NotificationsSent)
	}
	if len(report.Failures) != 1 || report.Failures[0].BookingID != "book-3" || report.Failures[0].Stage != "refund" {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}

	session, _ := f.sessions.FindByID(context.Background(), "sess-1")
	if session.Status != model.SessionCancelled {
		t.Errorf("expected session cancelled, got %s", session.Status)
	}
	if session.CurrentBookings != 0 {
		t.Errorf("expected all seats released, got %d", session.CurrentBookings)
	}

	booking, _ := f.bookings.FindByID(context.Background(), "book-0")
	if booking.Status != model.BookingCancelled || booking.PaymentStatus != model.PaymentRefunded {
		t.Errorf("unexpected booking state: %s %s", booking.Status, booking.PaymentStatus)
	}
	failed, _ := f.bookings.FindByID(context.Background(), "book-3")
	if failed.PaymentStatus != model.PaymentPaid {
		t.Errorf("expected failed refund to leave payment status paid, got %s", failed.PaymentStatus)
	}

	if evts := f.publisher.byType(events.TypeSessionCancelled); len(evts) != 1 {
		t.Errorf("expected 1 session.cancelled event, got %d", len(evts))
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 3, 10, model.SessionScheduled)
	for i := 0; i < 3; i++ {
		f.seedBooking(fmt.Sprintf("book-%d", i), "sess-1", fmt.Sprintf("guest%d@example.com", i), 1, model.PaymentPaid)
	}

	first, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonVenueUnavailable))
	if err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	refundsAfterFirst := f.payments.callCount()
	notificationsAfterFirst := f.notifier.callCount()

	second, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonVenueUnavailable))
	if err != nil {
		t.Fatalf("repeated cancel failed: %v", err)
	}

	if !second.CompletedAt.Equal(first.CompletedAt) || second.RefundsInitiated != first.RefundsInitiated {
		t.Errorf("expected the original report back, got %+v", second)
	}
	if f.payments.callCount() != refundsAfterFirst {
		t.Error("expected no additional refund calls on repeated cancel")
	}
	if f.notifier.callCount() != notificationsAfterFirst {
		t.Error("expected no additional notifications on repeated cancel")
	}
}

func TestCancelWhileCancellationInProgress(t *testing.T) {
	for _, state := range []string{model.CancelRequested, model.Cancelling} {
		t.Run(state, func(t *testing.T) {
			f := newFixture()
			f.seedSession("sess-1", 0, 10, model.SessionScheduled)
			f.reports.Upsert(context.Background(), &model.CancellationReport{
				SessionID: "sess-1",
				State:     state,
			})

			_, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonLowEnrollment))
			if !apperrors.HasCode(err, apperrors.CodeConflict) {
				t.Fatalf("expected CONFLICT, got %v", err)
			}
		})
	}
}

// The report must pass through cancel_requested before the session status
// flips, so a request is visible even if the flip never happens.
func TestCancelRecordsRequestBeforeStatusFlip(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 0, 10, model.SessionScheduled)

	var stateAtFlip string
	f.sessions.onUpdateStatus = func(sessionID string) {
		if report, err := f.reports.FindBySessionID(context.Background(), sessionID); err == nil {
			stateAtFlip = report.State
		}
	}

	report, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonLowEnrollment))
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if stateAtFlip != model.CancelRequested {
		t.Errorf("expected %s report at status flip, got %q", model.CancelRequested, stateAtFlip)
	}
	if report.State != model.CancelDone {
		t.Errorf("expected final state %s, got %s", model.CancelDone, report.State)
	}
}

func TestCancelCompletedSession(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 5, 10, model.SessionCompleted)

	_, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonWeather))
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		// Weather without details is a validation failure before any state
		// is touched.
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	req := cancelRequest(model.ReasonWeather)
	req.Details = "storm warning for Saturday"
	_, err = f.cancelSvc.Cancel(context.Background(), "sess-1", req)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestCancelDestroysActiveHolds(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 0, 10, model.SessionScheduled)
	f.seedIntent("int-1", "sess-1", "holder-a", 2, futureExpiry())
	f.seedIntent("int-2", "sess-1", "holder-b", 1, futureExpiry())

	report, err := f.cancelSvc.Cancel(context.Background(), "sess-1", cancelRequest(model.ReasonInstructorUnavailable))
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if report.TotalAttendees != 0 {
		t.Errorf("expected no attendees, got %d", report.TotalAttendees)
	}

	if count, _, _ := f.intents.TallyActiveSpots(context.Background(), "sess-1", futureExpiry()); count != 0 {
		t.Errorf("expected all holds destroyed, %d remain", count)
	}
	if evts := f.publisher.byType(events.TypeIntentCancelled); len(evts) != 2 {
		t.Errorf("expected 2 intent.cancelled events, got %d", len(evts))
	}
}

func TestCancelUnknownSession(t *testing.T) {
	f := newFixture()

	_, err := f.cancelSvc.Cancel(context.Background(), "missing", cancelRequest(model.ReasonOther))
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for other without details, got %v", err)
	}

	req := cancelRequest(model.ReasonOther)
	req.Details = "duplicate listing"
	_, err = f.cancelSvc.Cancel(context.Background(), "missing", req)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetReport(t *testing.T) {
	f := newFixture()

	_, err := f.cancelSvc.GetReport(context.Background(), "sess-1")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	f.reports.Upsert(context.Background(), &model.CancellationReport{
		SessionID: "sess-1",
		State:     model.CancelDone,
	})
	report, err := f.cancelSvc.GetReport(context.Background(), "sess-1")
	if err != nil || report.State != model.CancelDone {
		t.Fatalf("unexpected report result: %+v %v", report, err)
	}
}

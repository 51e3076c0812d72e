package service

import (
	"context"
	"errors"
	"sync"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/internal/reservations/repository"
	"coursebook/internal/reservations/validator"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

// PaymentGateway initiates refunds. Satisfied by client.PaymentClient.
type PaymentGateway interface {
	RequestRefund(ctx context.Context, bookingID string, amountCents int64) (string, error)
}

// Notifier delivers attendee notifications. Satisfied by
// client.NotificationClient.
type Notifier interface {
	Send(ctx context.Context, recipient, template string, data map[string]any) error
}

// CancellationService tears down a session: status flip, hold destruction,
// seat release, then a bounded refund and notification fan-out. Individual
// attendee failures are recorded in the report and never block the session
// from reaching its cancelled state.
type CancellationService interface {
	Cancel(ctx context.Context, sessionID string, req *validator.CancellationRequest) (*model.CancellationReport, error)
	GetReport(ctx context.Context, sessionID string) (*model.CancellationReport, error)
}

type cancellationService struct {
	sessionRepo repository.SessionRepository
	intentRepo  repository.IntentRepository
	bookingRepo repository.BookingRepository
	reportRepo  repository.ReportRepository
	ledger      CapacityLedger
	payments    PaymentGateway
	notifier    Notifier
	validator   *validator.ReservationValidator
	publisher   events.Publisher
	cfg         *config.Config
}

func NewCancellationService(
	sessionRepo repository.SessionRepository,
	intentRepo repository.IntentRepository,
	bookingRepo repository.BookingRepository,
	reportRepo repository.ReportRepository,
	ledger CapacityLedger,
	payments PaymentGateway,
	notifier Notifier,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) CancellationService {
	return &cancellationService{
		sessionRepo: sessionRepo,
		intentRepo:  intentRepo,
		bookingRepo: bookingRepo,
		reportRepo:  reportRepo,
		ledger:      ledger,
		payments:    payments,
		notifier:    notifier,
		validator:   validator,
		publisher:   publisher,
		cfg:         cfg,
	}
}

func (s *cancellationService) Cancel(ctx context.Context, sessionID string, req *validator.CancellationRequest) (*model.CancellationReport, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	if err := s.validator.ValidateCancellation(req); err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	existing, err := s.reportRepo.FindBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, reserrors.ErrReportNotFound) {
		return nil, apperrors.Internal("Failed to load cancellation report", err)
	}
	if existing != nil {
		switch existing.State {
		case model.CancelDone:
			// Re-invocation on an already cancelled session returns the
			// original report.
			return existing, nil
		case model.CancelRequested, model.Cancelling:
			return nil, apperrors.Conflict("Cancellation already in progress")
		}
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return nil, apperrors.NotFoundWithID("Session", sessionID)
		}
		return nil, apperrors.Internal("Failed to load session", err)
	}
	if session.Status == model.SessionCompleted {
		return nil, apperrors.InvalidTransition("Session", session.Status, model.SessionCancelled)
	}

	// The report is written in cancel_requested state before the session
	// status flips, so an operator always sees an accepted request even if
	// the process dies between the two writes.
	report := &model.CancellationReport{
		SessionID:         sessionID,
		Reason:            req.Reason,
		Details:           req.Details,
		State:             model.CancelRequested,
		ProcessRefunds:    req.ProcessRefunds,
		SendNotifications: req.SendNotifications,
		StartedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.reportRepo.Upsert(ctx, report); err != nil {
		return nil, apperrors.Internal("Failed to persist cancellation report", err)
	}

	if session.Status != model.SessionCancelled {
		if _, err := s.sessionRepo.UpdateStatus(ctx, sessionID, session.Status, model.SessionCancelled); err != nil {
			report.State = model.CancelFailed
			s.persistReport(ctx, report)
			if errors.Is(err, reserrors.ErrSessionNotFound) {
				return nil, apperrors.Conflict("Session status changed concurrently, retry")
			}
			return nil, apperrors.Internal("Failed to cancel session", err)
		}
	}

	report.State = model.Cancelling
	if err := s.persistReport(ctx, report); err != nil {
		return nil, err
	}

	s.destroyIntents(ctx, sessionID)

	bookings, err := s.bookingRepo.FindConfirmedBySession(ctx, sessionID)
	if err != nil {
		report.State = model.CancelFailed
		s.persistReport(ctx, report)
		return nil, apperrors.Internal("Failed to list confirmed bookings", err)
	}
	report.TotalAttendees = len(bookings)

	report.SeatsReleased = s.releaseSeats(ctx, session, bookings)

	s.processAttendees(ctx, session, bookings, report)

	report.State = model.CancelDone
	report.CompletedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := s.persistReport(ctx, report); err != nil {
		return nil, err
	}

	evt := events.New(events.TypeSessionCancelled, sessionID)
	evt.Reason = req.Reason
	evt.Availability, _ = s.ledger.Availability(ctx, sessionID)
	s.publisher.Publish(ctx, evt)

	s.cfg.Log.Info("Session cancelled",
		"session_id", sessionID,
		"reason", req.Reason,
		"attendees", report.TotalAttendees,
		"refunds", report.RefundsInitiated,
		"notifications", report.NotificationsSent,
		"failures", len(report.Failures),
	)
	return report, nil
}

func (s *cancellationService) GetReport(ctx context.Context, sessionID string) (*model.CancellationReport, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	report, err := s.reportRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, reserrors.ErrReportNotFound) {
			return nil, apperrors.NotFoundWithID("Cancellation report", sessionID)
		}
		return nil, apperrors.Internal("Failed to load cancellation report", err)
	}
	return report, nil
}

func (s *cancellationService) destroyIntents(ctx context.Context, sessionID string) {
	intents, err := s.intentRepo.DeleteBySession(ctx, sessionID)
	if err != nil {
		s.cfg.Log.Warn("Failed to destroy session intents", "session_id", sessionID, "error", err)
		return
	}

	for _, intent := range intents {
		evt := events.New(events.TypeIntentCancelled, sessionID)
		evt.IntentID = intent.ID
		evt.HolderKey = intent.HolderKey
		evt.Spots = intent.Spots
		s.publisher.Publish(ctx, evt)
	}
}

// releaseSeats gives back every confirmed seat in one ledger release keyed
// by the session, so a retried cancellation cannot release twice.
func (s *cancellationService) releaseSeats(ctx context.Context, session *model.Session, bookings []*model.Booking) int {
	total := 0
	for _, b := range bookings {
		total += b.Spots
	}
	if total == 0 {
		return 0
	}

	_, released, err := s.ledger.Release(ctx, session.ID, "session-cancel:"+session.ID, total)
	if err != nil {
		s.cfg.Log.Error("Failed to release seats for cancelled session", "session_id", session.ID, "error", err)
		return 0
	}
	if !released {
		return 0
	}
	return total
}

// processAttendees runs refunds and notifications with a bounded worker
// pool. Each attendee is independent: one failure lands in the report and
// the rest proceed.
func (s *cancellationService) processAttendees(ctx context.Context, session *model.Session, bookings []*model.Booking, report *model.CancellationReport) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.CancelWorkers)

	for _, booking := range bookings {
		wg.Add(1)
		sem <- struct{}{}
		go func(b *model.Booking) {
			defer wg.Done()
			defer func() { <-sem }()

			refunded, notified, failures := s.processAttendee(ctx, session, b, report.ProcessRefunds, report.SendNotifications)

			mu.Lock()
			if refunded {
				report.RefundsInitiated++
			}
			if notified {
				report.NotificationsSent++
			}
			report.Failures = append(report.Failures, failures...)
			mu.Unlock()
		}(booking)
	}

	wg.Wait()
}

func (s *cancellationService) processAttendee(ctx context.Context, session *model.Session, booking *model.Booking, refunds, notifications bool) (refunded, notified bool, failures []model.AttendeeFailure) {
	// The status filter makes the transition first-writer-wins: a retried
	// cancellation skips attendees already processed.
	if _, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, model.BookingConfirmed, model.BookingCancelled); err != nil {
		if errors.Is(err, reserrors.ErrBookingNotFound) {
			return false, false, nil
		}
		failures = append(failures, model.AttendeeFailure{
			BookingID:    booking.ID,
			ContactEmail: booking.ContactEmail,
			Stage:        "refund",
			Reason:       err.Error(),
		})
		return false, false, failures
	}

	if refunds && booking.PaymentStatus == model.PaymentPaid && booking.AmountCents > 0 {
		if _, err := s.payments.RequestRefund(ctx, booking.ID, booking.AmountCents); err != nil {
			s.cfg.Log.Warn("Refund failed", "booking_id", booking.ID, "error", err)
			failures = append(failures, model.AttendeeFailure{
				BookingID:    booking.ID,
				ContactEmail: booking.ContactEmail,
				Stage:        "refund",
				Reason:       err.Error(),
			})
		} else {
			refunded = true
			if err := s.bookingRepo.SetPaymentStatus(ctx, booking.ID, model.PaymentRefunded); err != nil {
				s.cfg.Log.Warn("Failed to mark booking refunded", "booking_id", booking.ID, "error", err)
			}
		}
	}

	if notifications {
		data := map[string]any{
			"session_id":  session.ID,
			"course_type": session.CourseType,
			"start_time":  session.StartTime,
			"venue":       session.Venue,
		}
		if err := s.notifier.Send(ctx, booking.ContactEmail, "session_cancelled", data); err != nil {
			s.cfg.Log.Warn("Notification failed", "booking_id", booking.ID, "error", err)
			failures = append(failures, model.AttendeeFailure{
				BookingID:    booking.ID,
				ContactEmail: booking.ContactEmail,
				Stage:        "notification",
				Reason:       err.Error(),
			})
		} else {
			notified = true
		}
	}

	return refunded, notified, failures
}

func (s *cancellationService) persistReport(ctx context.Context, report *model.CancellationReport) error {
	if err := s.reportRepo.Upsert(ctx, report); err != nil {
		s.cfg.Log.Error("Failed to persist cancellation report", "session_id", report.SessionID, "error", err)
		return apperrors.Internal("Failed to persist cancellation report", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/internal/reservations/repository"
	"coursebook/internal/reservations/validator"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
	"coursebook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const sweepBatchSize = 100

// IntentService manages time-boxed seat holds and the confirm step that
// turns a hold into a booking.
type IntentService interface {
	Create(ctx context.Context, intent *model.BookingIntent) error
	Cancel(ctx context.Context, intentID string) error
	Extend(ctx context.Context, intentID string) (*model.BookingIntent, error)
	GetActiveBySession(ctx context.Context, sessionID string) ([]*model.BookingIntent, error)
	ConfirmBooking(ctx context.Context, intentID string, booking *model.Booking) (*model.Booking, error)
	SweepExpired(ctx context.Context) (int, error)
}

type intentService struct {
	intentRepo  repository.IntentRepository
	sessionRepo repository.SessionRepository
	bookingRepo repository.BookingRepository
	lockRepo    repository.SessionLockRepository
	ledger      CapacityLedger
	validator   *validator.ReservationValidator
	publisher   events.Publisher
	cfg         *config.Config
}

func NewIntentService(
	intentRepo repository.IntentRepository,
	sessionRepo repository.SessionRepository,
	bookingRepo repository.BookingRepository,
	lockRepo repository.SessionLockRepository,
	ledger CapacityLedger,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) IntentService {
	return &intentService{
		intentRepo:  intentRepo,
		sessionRepo: sessionRepo,
		bookingRepo: bookingRepo,
		lockRepo:    lockRepo,
		ledger:      ledger,
		validator:   validator,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Create admits a new hold. Admission counts confirmed seats plus every
// other active hold, so the sum of holds never oversubscribes the session.
// An advisory per-session lock serializes concurrent admissions; the lock
// protects the tally-then-insert window only, not confirms.
func (s *intentService) Create(ctx context.Context, intent *model.BookingIntent) error {
	now := time.Now().UTC()
	intent.ID = uuid.New().String()
	intent.HolderKey = sanitizer.SanitizeHolderKey(intent.HolderKey)
	intent.CreatedAt = now.Truncate(time.Millisecond)
	intent.ExpiresAt = now.Add(s.cfg.IntentTTL)

	if err := s.validator.ValidateIntent(intent); err != nil {
		return apperrors.Validation(err.Error(), nil)
	}

	if err := s.lockRepo.Acquire(ctx, intent.SessionID); err != nil {
		if errors.Is(err, reserrors.ErrLockHeld) {
			return apperrors.Conflict("Session is busy, retry shortly")
		}
		return apperrors.Internal("Failed to acquire session lock", err)
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, intent.SessionID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release session lock", "session_id", intent.SessionID, "error", releaseErr)
		}
	}()

	// Read the counters under the lock: a confirm committed before the
	// acquire must be visible to the admission arithmetic.
	session, err := s.sessionRepo.FindByID(ctx, intent.SessionID)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return apperrors.NotFoundWithID("Session", intent.SessionID)
		}
		return apperrors.Internal("Failed to load session", err)
	}
	if session.Status != model.SessionScheduled {
		return apperrors.Conflict("Session is not accepting bookings")
	}

	_, heldSpots, err := s.intentRepo.TallyActiveSpots(ctx, intent.SessionID, now)
	if err != nil {
		return apperrors.Internal("Failed to tally active intents", err)
	}

	remaining := session.MaxCapacity - session.CurrentBookings - heldSpots
	if intent.Spots > remaining {
		if remaining < 0 {
			remaining = 0
		}
		return apperrors.CapacityExceeded(intent.SessionID, intent.Spots, remaining)
	}

	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return apperrors.Internal("Failed to create intent", err)
	}

	evt := events.New(events.TypeIntentCreated, intent.SessionID)
	evt.IntentID = intent.ID
	evt.HolderKey = intent.HolderKey
	evt.Spots = intent.Spots
	evt.ExpiresAt = &intent.ExpiresAt
	evt.Availability, _ = s.ledger.Availability(ctx, intent.SessionID)
	s.publisher.Publish(ctx, evt)

	s.cfg.Log.Info("Booking intent created",
		"intent_id", intent.ID,
		"session_id", intent.SessionID,
		"spots", intent.Spots,
		"expires_at", intent.ExpiresAt,
	)
	return nil
}

func (s *intentService) Cancel(ctx context.Context, intentID string) error {
	if intentID == "" {
		return apperrors.InvalidInput("Intent ID cannot be empty")
	}

	intent, err := s.intentRepo.DeleteActive(ctx, intentID, time.Now().UTC())
	if err != nil {
		return s.mapIntentError(err, intentID)
	}

	evt := events.New(events.TypeIntentCancelled, intent.SessionID)
	evt.IntentID = intent.ID
	evt.HolderKey = intent.HolderKey
	evt.Spots = intent.Spots
	evt.Availability, _ = s.ledger.Availability(ctx, intent.SessionID)
	s.publisher.Publish(ctx, evt)

	s.cfg.Log.Info("Booking intent cancelled", "intent_id", intentID, "session_id", intent.SessionID)
	return nil
}

// Extend resets the hold's clock to a full TTL from now. Expired holds
// cannot be extended back to life.
func (s *intentService) Extend(ctx context.Context, intentID string) (*model.BookingIntent, error) {
	if intentID == "" {
		return nil, apperrors.InvalidInput("Intent ID cannot be empty")
	}

	intent, err := s.intentRepo.Extend(ctx, intentID, time.Now().UTC(), s.cfg.IntentTTL)
	if err != nil {
		return nil, s.mapIntentError(err, intentID)
	}

	s.cfg.Log.Info("Booking intent extended", "intent_id", intentID, "expires_at", intent.ExpiresAt)
	return intent, nil
}

func (s *intentService) GetActiveBySession(ctx context.Context, sessionID string) ([]*model.BookingIntent, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	intents, err := s.intentRepo.FindActiveBySession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return nil, apperrors.Internal("Failed to list intents", err)
	}
	return intents, nil
}

// ConfirmBooking converts an active hold into a confirmed booking. Seat
// increment, booking insert and hold destruction commit together; when two
// confirms race for the last seat the ledger admits exactly one and the
// loser's hold is destroyed with a rejection event.
func (s *intentService) ConfirmBooking(ctx context.Context, intentID string, booking *model.Booking) (*model.Booking, error) {
	now := time.Now().UTC()

	intent, err := s.intentRepo.FindActiveByID(ctx, intentID, now)
	if err != nil {
		return nil, s.mapIntentError(err, intentID)
	}

	booking.ID = uuid.New().String()
	booking.SessionID = intent.SessionID
	booking.Spots = intent.Spots
	booking.Status = model.BookingConfirmed
	booking.ContactName = sanitizer.NormalizeName(booking.ContactName)
	booking.ContactEmail = sanitizer.SanitizeEmail(booking.ContactEmail)
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = model.PaymentUnpaid
		if booking.AmountCents > 0 {
			booking.PaymentStatus = model.PaymentPaid
		}
	}

	if err := s.validator.ValidateBooking(booking); err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	var session *model.Session
	err = s.sessionRepo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var txErr error
		session, txErr = s.ledger.Confirm(sessCtx, intent.SessionID, intent.Spots)
		if txErr != nil {
			return txErr
		}
		if txErr = s.bookingRepo.Create(sessCtx, booking); txErr != nil {
			return apperrors.Internal("Failed to create booking", txErr)
		}
		if _, txErr = s.intentRepo.DeleteActive(sessCtx, intentID, now); txErr != nil {
			return s.mapIntentError(txErr, intentID)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
			s.rejectIntent(ctx, intent)
		}
		return nil, err
	}

	s.publishConfirmed(ctx, session, intent, booking)

	s.cfg.Log.Info("Booking confirmed",
		"booking_id", booking.ID,
		"intent_id", intentID,
		"session_id", booking.SessionID,
		"spots", booking.Spots,
		"current_bookings", session.CurrentBookings,
	)
	return booking, nil
}

// rejectIntent destroys a hold that lost the race for remaining seats and
// announces the rejection.
func (s *intentService) rejectIntent(ctx context.Context, intent *model.BookingIntent) {
	if err := s.intentRepo.DeleteByID(ctx, intent.ID); err != nil {
		s.cfg.Log.Warn("Failed to delete rejected intent", "intent_id", intent.ID, "error", err)
	}

	evt := events.New(events.TypeBookingRejected, intent.SessionID)
	evt.IntentID = intent.ID
	evt.HolderKey = intent.HolderKey
	evt.Spots = intent.Spots
	evt.Reason = "capacity_exceeded"
	evt.Availability, _ = s.ledger.Availability(ctx, intent.SessionID)
	s.publisher.Publish(ctx, evt)
}

func (s *intentService) publishConfirmed(ctx context.Context, session *model.Session, intent *model.BookingIntent, booking *model.Booking) {
	avail, _ := s.ledger.Availability(ctx, booking.SessionID)

	evt := events.New(events.TypeBookingConfirmed, booking.SessionID)
	evt.IntentID = intent.ID
	evt.BookingID = booking.ID
	evt.HolderKey = intent.HolderKey
	evt.Spots = booking.Spots
	evt.ContactEmail = booking.ContactEmail
	evt.RemoteIP = booking.RemoteIP
	evt.Availability = avail
	s.publisher.Publish(ctx, evt)

	payEvt := events.New(events.TypePaymentRecorded, booking.SessionID)
	payEvt.BookingID = booking.ID
	payEvt.ContactEmail = booking.ContactEmail
	payEvt.AmountCents = booking.AmountCents
	payEvt.ExpectedCents = session.PriceCents * int64(booking.Spots)
	payEvt.Availability = avail
	s.publisher.Publish(ctx, payEvt)
}

// SweepExpired deletes holds past their expiry and announces each one. The
// lazy expiry filters keep expired holds out of every query in the meantime,
// so the sweep reclaims storage rather than correctness.
func (s *intentService) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.intentRepo.FindExpired(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, apperrors.Internal("Failed to list expired intents", err)
	}

	swept := 0
	for _, intent := range expired {
		if err := s.intentRepo.DeleteByID(ctx, intent.ID); err != nil {
			s.cfg.Log.Warn("Failed to delete expired intent", "intent_id", intent.ID, "error", err)
			continue
		}
		swept++

		evt := events.New(events.TypeIntentExpired, intent.SessionID)
		evt.IntentID = intent.ID
		evt.HolderKey = intent.HolderKey
		evt.Spots = intent.Spots
		evt.Availability, _ = s.ledger.Availability(ctx, intent.SessionID)
		s.publisher.Publish(ctx, evt)
	}

	if swept > 0 {
		s.cfg.Log.Info("Expired intents swept", "count", swept)
	}
	return swept, nil
}

func (s *intentService) mapIntentError(err error, intentID string) error {
	switch {
	case errors.Is(err, reserrors.ErrIntentNotFound):
		return apperrors.NotFoundWithID("Booking intent", intentID)
	case errors.Is(err, reserrors.ErrIntentExpired):
		return apperrors.IntentExpired(intentID)
	case apperrors.IsAppError(err):
		return err
	}
	return apperrors.Internal("Intent operation failed", err)
}

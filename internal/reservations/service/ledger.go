package service

import (
	"context"
	"errors"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/internal/reservations/repository"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

// CapacityLedger is the authority on confirmed seats. Confirm either
// succeeds atomically within capacity or fails without any partial effect;
// Release is idempotent per release key and never drives a count negative.
type CapacityLedger interface {
	Confirm(ctx context.Context, sessionID string, spots int) (*model.Session, error)
	Release(ctx context.Context, sessionID, releaseKey string, spots int) (*model.Session, bool, error)
	Availability(ctx context.Context, sessionID string) (*model.Availability, error)
}

type capacityLedger struct {
	sessionRepo repository.SessionRepository
	intentRepo  repository.IntentRepository
	guardRepo   repository.ReleaseGuardRepository
	publisher   events.Publisher
	cfg         *config.Config
}

func NewCapacityLedger(
	sessionRepo repository.SessionRepository,
	intentRepo repository.IntentRepository,
	guardRepo repository.ReleaseGuardRepository,
	publisher events.Publisher,
	cfg *config.Config,
) CapacityLedger {
	return &capacityLedger{
		sessionRepo: sessionRepo,
		intentRepo:  intentRepo,
		guardRepo:   guardRepo,
		publisher:   publisher,
		cfg:         cfg,
	}
}

func (s *capacityLedger) Confirm(ctx context.Context, sessionID string, spots int) (*model.Session, error) {
	if spots < 1 {
		return nil, apperrors.InvalidInput("Spots must be positive")
	}

	session, err := s.sessionRepo.ConfirmSeats(ctx, sessionID, spots)
	if err != nil {
		switch {
		case errors.Is(err, reserrors.ErrSessionNotFound):
			return nil, apperrors.NotFoundWithID("Session", sessionID)
		case errors.Is(err, reserrors.ErrSessionTerminal):
			return nil, apperrors.Conflict("Session is not accepting bookings")
		case errors.Is(err, reserrors.ErrCapacityExceeded):
			remaining := 0
			if avail, availErr := s.Availability(ctx, sessionID); availErr == nil {
				remaining = avail.Remaining
			}
			return nil, apperrors.CapacityExceeded(sessionID, spots, remaining)
		}
		s.cfg.Log.Error("Failed to confirm seats", "session_id", sessionID, "error", err)
		return nil, apperrors.Internal("Failed to confirm seats", err)
	}

	return session, nil
}

// Release gives spots back to the session. The release key dedupes retries:
// a key seen before returns the current session state with released=false
// and no error.
func (s *capacityLedger) Release(ctx context.Context, sessionID, releaseKey string, spots int) (*model.Session, bool, error) {
	if spots < 1 {
		return nil, false, apperrors.InvalidInput("Spots must be positive")
	}

	if err := s.guardRepo.Record(ctx, releaseKey, spots); err != nil {
		if errors.Is(err, reserrors.ErrDuplicateRelease) {
			s.cfg.Log.Info("Duplicate seat release ignored",
				"session_id", sessionID,
				"release_key", releaseKey,
			)
			session, findErr := s.sessionRepo.FindByID(ctx, sessionID)
			if findErr != nil {
				if errors.Is(findErr, reserrors.ErrSessionNotFound) {
					return nil, false, apperrors.NotFoundWithID("Session", sessionID)
				}
				return nil, false, apperrors.Internal("Failed to load session", findErr)
			}
			return session, false, nil
		}
		return nil, false, apperrors.Internal("Failed to record seat release", err)
	}

	session, err := s.sessionRepo.ReleaseSeats(ctx, sessionID, spots)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return nil, false, apperrors.NotFoundWithID("Session", sessionID)
		}
		return nil, false, apperrors.Internal("Failed to release seats", err)
	}

	evt := events.New(events.TypeSeatsReleased, sessionID)
	evt.Spots = spots
	evt.Availability = s.snapshot(ctx, session)
	s.publisher.Publish(ctx, evt)

	s.cfg.Log.Info("Seats released",
		"session_id", sessionID,
		"release_key", releaseKey,
		"spots", spots,
		"current_bookings", session.CurrentBookings,
	)
	return session, true, nil
}

func (s *capacityLedger) Availability(ctx context.Context, sessionID string) (*model.Availability, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return nil, apperrors.NotFoundWithID("Session", sessionID)
		}
		return nil, apperrors.Internal("Failed to load session", err)
	}

	return s.snapshot(ctx, session), nil
}

// snapshot builds the availability view from a freshly read or mutated
// session. Remaining counts both confirmed seats and active holds: a seat
// under a hold is not offerable. The intent tally is best effort; a failed
// tally still yields a correct confirmed-seat picture.
func (s *capacityLedger) snapshot(ctx context.Context, session *model.Session) *model.Availability {
	avail := &model.Availability{
		SessionID: session.ID,
		Current:   session.CurrentBookings,
		Max:       session.MaxCapacity,
		Remaining: session.MaxCapacity - session.CurrentBookings,
	}

	count, spots, err := s.intentRepo.TallyActiveSpots(ctx, session.ID, time.Now().UTC())
	if err != nil {
		s.cfg.Log.Warn("Failed to tally active intents", "session_id", session.ID, "error", err)
		return avail
	}
	avail.ActiveIntentCount = count
	avail.ActiveIntentSpots = spots
	avail.Remaining -= spots
	if avail.Remaining < 0 {
		avail.Remaining = 0
	}
	return avail
}

package service

import (
	"context"
	"errors"
	"sync"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/internal/reservations/repository"
	"coursebook/internal/reservations/validator"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/model"
	"coursebook/pkg/sanitizer"

	"github.com/google/uuid"
)

type SessionService interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error)
	GetAvailability(ctx context.Context, id string) (*model.Availability, error)
	ListBookings(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, id, next string) (*model.Session, error)
}

type sessionService struct {
	repo        repository.SessionRepository
	bookingRepo repository.BookingRepository
	ledger      CapacityLedger
	validator   *validator.ReservationValidator
	cfg         *config.Config
}

func NewSessionService(
	repo repository.SessionRepository,
	bookingRepo repository.BookingRepository,
	ledger CapacityLedger,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:        repo,
		bookingRepo: bookingRepo,
		ledger:      ledger,
		validator:   validator,
		cfg:         cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, session *model.Session) error {
	session.ID = uuid.New().String()
	session.CourseType = sanitizer.SanitizeLabel(session.CourseType)
	session.Venue = sanitizer.NormalizeName(session.Venue)
	session.CurrentBookings = 0
	if session.Status == "" {
		session.Status = model.SessionScheduled
	}
	if session.MaxCapacity > s.cfg.MaxSessionCapacity {
		session.MaxCapacity = s.cfg.MaxSessionCapacity
	}

	if err := s.validator.ValidateSession(session); err != nil {
		return apperrors.Validation(err.Error(), nil)
	}

	if err := s.repo.Create(ctx, session); err != nil {
		s.cfg.Log.Error("Failed to create session", "error", err)
		return apperrors.Internal("Failed to create session", err)
	}

	s.cfg.Log.Info("Session created",
		"id", session.ID,
		"course_type", session.CourseType,
		"start_time", session.StartTime,
		"max_capacity", session.MaxCapacity,
	)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return nil, apperrors.NotFoundWithID("Session", id)
		}
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}

	return session, nil
}

func (s *sessionService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var sessions []*model.Session
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count sessions", "error", errCount)
			errCount = apperrors.Internal("Failed to count sessions", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		sessions, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list sessions", "error", errFind)
			errFind = apperrors.Internal("Failed to list sessions", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return sessions, count, nil
}

func (s *sessionService) GetAvailability(ctx context.Context, id string) (*model.Availability, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	return s.ledger.Availability(ctx, id)
}

func (s *sessionService) ListBookings(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if sessionID == "" {
		return nil, 0, apperrors.InvalidInput("Session ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.bookingRepo.FindBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}

	count, err := s.bookingRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	return bookings, count, nil
}

// UpdateStatus advances the lifecycle. Cancellation must go through the
// cancellation orchestrator, not this path.
func (s *sessionService) UpdateStatus(ctx context.Context, id, next string) (*model.Session, error) {
	if next == model.SessionCancelled {
		return nil, apperrors.InvalidInput("Use the cancellation endpoint to cancel a session")
	}

	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !session.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("Session", session.Status, next)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, session.Status, next)
	if err != nil {
		if errors.Is(err, reserrors.ErrSessionNotFound) {
			return nil, apperrors.InvalidTransition("Session", session.Status, next)
		}
		return nil, apperrors.Internal("Failed to update session status", err)
	}

	s.cfg.Log.Info("Session status updated", "id", id, "from", session.Status, "to", next)
	return updated, nil
}

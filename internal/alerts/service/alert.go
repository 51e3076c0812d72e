package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	alertserrors "coursebook/internal/alerts/errors"
	"coursebook/internal/alerts/repository"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/model"

	"github.com/google/uuid"
)

type AlertService interface {
	Raise(ctx context.Context, alert *model.Alert) error
	GetByID(ctx context.Context, id string) (*model.Alert, error)
	GetAll(ctx context.Context, filter repository.AlertFilter, limit int, offset int64) ([]*model.Alert, int64, error)
	Acknowledge(ctx context.Context, id string) (*model.Alert, error)
	Resolve(ctx context.Context, id, resolvedBy, note string) (*model.Alert, error)
}

type alertService struct {
	repo repository.AlertRepository
	cfg  *config.Config
}

func NewAlertService(repo repository.AlertRepository, cfg *config.Config) AlertService {
	return &alertService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *alertService) Raise(ctx context.Context, alert *model.Alert) error {
	alert.ID = uuid.New().String()
	if alert.Status == "" {
		alert.Status = model.AlertUnread
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return apperrors.Internal("Failed to create alert", err)
	}

	s.cfg.Log.Info("Alert raised",
		"id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"session_id", alert.SessionID,
	)
	return nil
}

func (s *alertService) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Alert ID cannot be empty")
	}

	alert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, alertserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Alert", id)
		}
		return nil, apperrors.Internal("Failed to retrieve alert", err)
	}

	return alert, nil
}

func (s *alertService) GetAll(ctx context.Context, filter repository.AlertFilter, limit int, offset int64) ([]*model.Alert, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var alerts []*model.Alert
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count alerts", "error", errCount)
			errCount = apperrors.Internal("Failed to count alerts", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		alerts, errFind = s.repo.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list alerts", "error", errFind)
			errFind = apperrors.Internal("Failed to list alerts", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return alerts, count, nil
}

func (s *alertService) Acknowledge(ctx context.Context, id string) (*model.Alert, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Alert ID cannot be empty")
	}

	alert, err := s.repo.Acknowledge(ctx, id, time.Now().UTC().Truncate(time.Millisecond))
	if err != nil {
		if errors.Is(err, alertserrors.ErrNotFound) {
			return nil, s.classifyTransitionFailure(ctx, id, model.AlertAcknowledged)
		}
		return nil, apperrors.Internal("Failed to acknowledge alert", err)
	}

	s.cfg.Log.Info("Alert acknowledged", "id", id)
	return alert, nil
}

func (s *alertService) Resolve(ctx context.Context, id, resolvedBy, note string) (*model.Alert, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Alert ID cannot be empty")
	}
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, apperrors.InvalidInput("resolved_by is required")
	}

	alert, err := s.repo.Resolve(ctx, id, time.Now().UTC().Truncate(time.Millisecond), resolvedBy, note)
	if err != nil {
		if errors.Is(err, alertserrors.ErrNotFound) {
			return nil, s.classifyTransitionFailure(ctx, id, model.AlertResolved)
		}
		return nil, apperrors.Internal("Failed to resolve alert", err)
	}

	s.cfg.Log.Info("Alert resolved", "id", id, "resolved_by", resolvedBy)
	return alert, nil
}

// classifyTransitionFailure turns a filtered-update miss into the right
// caller error: the alert either does not exist or sits in a state the
// transition does not accept.
func (s *alertService) classifyTransitionFailure(ctx context.Context, id, target string) error {
	alert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, alertserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Alert", id)
		}
		return apperrors.Internal("Failed to retrieve alert", err)
	}
	return apperrors.InvalidTransition("Alert", alert.Status, target)
}

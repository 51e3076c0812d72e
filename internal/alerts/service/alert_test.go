package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	alertserrors "coursebook/internal/alerts/errors"
	"coursebook/internal/alerts/repository"
	"coursebook/pkg/config"
	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/logger"
	"coursebook/pkg/model"
)

// memAlertRepo mirrors the Mongo repository's filtered updates: a transition
// whose status filter misses reports not found, exactly like a filtered
// FindOneAndUpdate.
type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*model.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[string]*model.Alert)}
}

func (r *memAlertRepo) Create(_ context.Context, alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert.CreatedAt = time.Now().UTC()
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *memAlertRepo) FindByID(_ context.Context, id string) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, alertserrors.ErrNotFound
	}
	cp := *alert
	return &cp, nil
}

func (r *memAlertRepo) matches(alert *model.Alert, filter repository.AlertFilter) bool {
	if filter.Status != "" && alert.Status != filter.Status {
		return false
	}
	if filter.Severity != "" && alert.Severity != filter.Severity {
		return false
	}
	if filter.Type != "" && alert.Type != filter.Type {
		return false
	}
	if filter.SessionID != "" && alert.SessionID != filter.SessionID {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(alert.Message), needle) &&
			!strings.Contains(strings.ToLower(alert.Identity), needle) {
			return false
		}
	}
	return true
}

func (r *memAlertRepo) FindAll(_ context.Context, filter repository.AlertFilter, limit int, offset int64) ([]*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Alert{}
	for _, alert := range r.alerts {
		if r.matches(alert, filter) {
			cp := *alert
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAlertRepo) Count(_ context.Context, filter repository.AlertFilter) (int64, error) {
	alerts, _ := r.FindAll(nil, filter, 0, 0)
	return int64(len(alerts)), nil
}

func (r *memAlertRepo) Acknowledge(_ context.Context, id string, at time.Time) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.Status != model.AlertUnread {
		return nil, alertserrors.ErrNotFound
	}
	alert.Status = model.AlertAcknowledged
	alert.AcknowledgedAt = &at
	cp := *alert
	return &cp, nil
}

func (r *memAlertRepo) Resolve(_ context.Context, id string, at time.Time, resolvedBy, note string) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || (alert.Status != model.AlertUnread && alert.Status != model.AlertAcknowledged) {
		return nil, alertserrors.ErrNotFound
	}
	alert.Status = model.AlertResolved
	alert.ResolvedAt = &at
	alert.ResolvedBy = resolvedBy
	alert.ResolutionNote = note
	cp := *alert
	return &cp, nil
}

func newTestService() (AlertService, *memAlertRepo) {
	repo := newMemAlertRepo()
	cfg := &config.Config{Log: logger.New(logger.Config{Level: logger.ERROR})}
	return NewAlertService(repo, cfg), repo
}

func raiseTestAlert(t *testing.T, svc AlertService) *model.Alert {
	t.Helper()
	alert := &model.Alert{
		Type:      model.AlertDuplicateBookingAttempt,
		Severity:  model.SeverityMedium,
		SessionID: "sess-1",
		Identity:  "dana@example.com",
		Message:   "Repeated booking",
	}
	if err := svc.Raise(context.Background(), alert); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	return alert
}

func TestRaiseAssignsDefaults(t *testing.T) {
	svc, repo := newTestService()
	alert := raiseTestAlert(t, svc)

	if alert.ID == "" {
		t.Error("expected alert id assigned")
	}
	stored, err := repo.FindByID(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("stored alert missing: %v", err)
	}
	if stored.Status != model.AlertUnread {
		t.Errorf("expected unread status, got %s", stored.Status)
	}
}

func TestAcknowledgeThenResolve(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	acked, err := svc.Acknowledge(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if acked.Status != model.AlertAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("unexpected acknowledged alert: %+v", acked)
	}

	resolved, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "duplicate customer, merged")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != model.AlertResolved || resolved.ResolvedBy != "ops@example.com" {
		t.Errorf("unexpected resolved alert: %+v", resolved)
	}
}

func TestResolveDirectlyFromUnread(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	if _, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "false positive"); err != nil {
		t.Fatalf("resolve from unread failed: %v", err)
	}
}

func TestResolveTwice(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	if _, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "handled"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	_, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "handled again")
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION on second resolve, got %v", err)
	}
}

func TestAcknowledgeResolvedAlert(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	if _, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "handled"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	_, err := svc.Acknowledge(context.Background(), alert.ID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestTransitionOnMissingAlert(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Acknowledge(context.Background(), "missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), "missing", "ops@example.com", "n/a"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveRequiresActor(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	if _, err := svc.Resolve(context.Background(), alert.ID, "  ", "note"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for blank resolver, got %v", err)
	}
}

func TestResolveAcceptsEmptyNote(t *testing.T) {
	svc, _ := newTestService()
	alert := raiseTestAlert(t, svc)

	resolved, err := svc.Resolve(context.Background(), alert.ID, "ops@example.com", "")
	if err != nil {
		t.Fatalf("resolve with empty note failed: %v", err)
	}
	if resolved.Status != model.AlertResolved || resolved.ResolutionNote != "" {
		t.Errorf("unexpected resolved alert: %+v", resolved)
	}
}

func TestGetAllFilters(t *testing.T) {
	svc, _ := newTestService()
	raiseTestAlert(t, svc)
	other := &model.Alert{
		Type:      model.AlertPaymentMismatch,
		Severity:  model.SeverityHigh,
		SessionID: "sess-2",
		Message:   "Recorded payment short",
	}
	if err := svc.Raise(context.Background(), other); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	alerts, count, err := svc.GetAll(context.Background(), repository.AlertFilter{Severity: model.SeverityHigh}, 10, 0)
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if count != 1 || len(alerts) != 1 || alerts[0].Type != model.AlertPaymentMismatch {
		t.Errorf("unexpected filtered result: count=%d alerts=%+v", count, alerts)
	}
}

func TestGetAllSearchesMessageAndIdentity(t *testing.T) {
	svc, _ := newTestService()
	raiseTestAlert(t, svc)
	other := &model.Alert{
		Type:      model.AlertPaymentMismatch,
		Severity:  model.SeverityHigh,
		SessionID: "sess-2",
		Message:   "Recorded payment short",
	}
	if err := svc.Raise(context.Background(), other); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	alerts, count, err := svc.GetAll(context.Background(), repository.AlertFilter{Search: "DANA@"}, 10, 0)
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if count != 1 || len(alerts) != 1 || alerts[0].Identity != "dana@example.com" {
		t.Errorf("unexpected identity search result: count=%d alerts=%+v", count, alerts)
	}

	alerts, count, err = svc.GetAll(context.Background(), repository.AlertFilter{Search: "payment short"}, 10, 0)
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if count != 1 || len(alerts) != 1 || alerts[0].Type != model.AlertPaymentMismatch {
		t.Errorf("unexpected message search result: count=%d alerts=%+v", count, alerts)
	}
}

package service

import (
	"context"
	"sync"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/internal/reservations/validator"
	"coursebook/pkg/config"
	mongotx "coursebook/pkg/db/mongo"
	"coursebook/pkg/events"
	"coursebook/pkg/logger"
	"coursebook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// In-memory repositories with the same atomicity guarantees as the Mongo
// implementations, so concurrency scenarios exercise real interleavings.

type memSessionRepo struct {
	mu             sync.Mutex
	sessions       map[string]*model.Session
	onUpdateStatus func(sessionID string)
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memSessionRepo) put(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
}

func (r *memSessionRepo) Create(_ context.Context, session *model.Session) error {
	r.put(session)
	return nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, reserrors.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (r *memSessionRepo) FindAll(_ context.Context, limit int, offset int64) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Session{}
	for _, s := range r.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memSessionRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.sessions)), nil
}

func (r *memSessionRepo) ConfirmSeats(_ context.Context, sessionID string, spots int) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, reserrors.ErrSessionNotFound
	}
	if session.Status != model.SessionScheduled {
		return nil, reserrors.ErrSessionTerminal
	}
	if session.CurrentBookings+spots > session.MaxCapacity {
		return nil, reserrors.ErrCapacityExceeded
	}
	session.CurrentBookings += spots
	cp := *session
	return &cp, nil
}

func (r *memSessionRepo) ReleaseSeats(_ context.Context, sessionID string, spots int) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, reserrors.ErrSessionNotFound
	}
	session.CurrentBookings -= spots
	if session.CurrentBookings < 0 {
		session.CurrentBookings = 0
	}
	cp := *session
	return &cp, nil
}

func (r *memSessionRepo) UpdateStatus(_ context.Context, sessionID, from, to string) (*model.Session, error) {
	if r.onUpdateStatus != nil {
		r.onUpdateStatus(sessionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Status != from {
		return nil, reserrors.ErrSessionNotFound
	}
	session.Status = to
	cp := *session
	return &cp, nil
}

func (r *memSessionRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type memIntentRepo struct {
	mu      sync.Mutex
	intents map[string]*model.BookingIntent
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{intents: make(map[string]*model.BookingIntent)}
}

func (r *memIntentRepo) put(i *model.BookingIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *i
	r.intents[i.ID] = &cp
}

func (r *memIntentRepo) Create(_ context.Context, intent *model.BookingIntent) error {
	r.put(intent)
	return nil
}

func (r *memIntentRepo) classifyMissLocked(id string) error {
	if _, ok := r.intents[id]; ok {
		return reserrors.ErrIntentExpired
	}
	return reserrors.ErrIntentNotFound
}

func (r *memIntentRepo) FindActiveByID(_ context.Context, id string, now time.Time) (*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || !now.Before(intent.ExpiresAt) {
		return nil, r.classifyMissLocked(id)
	}
	cp := *intent
	return &cp, nil
}

func (r *memIntentRepo) FindActiveBySession(_ context.Context, sessionID string, now time.Time) ([]*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.BookingIntent{}
	for _, intent := range r.intents {
		if intent.SessionID == sessionID && now.Before(intent.ExpiresAt) {
			cp := *intent
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memIntentRepo) TallyActiveSpots(_ context.Context, sessionID string, now time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count, spots := 0, 0
	for _, intent := range r.intents {
		if intent.SessionID == sessionID && now.Before(intent.ExpiresAt) {
			count++
			spots += intent.Spots
		}
	}
	return count, spots, nil
}

func (r *memIntentRepo) Extend(_ context.Context, id string, now time.Time, ttl time.Duration) (*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || !now.Before(intent.ExpiresAt) {
		return nil, r.classifyMissLocked(id)
	}
	intent.ExpiresAt = now.Add(ttl)
	cp := *intent
	return &cp, nil
}

func (r *memIntentRepo) DeleteActive(_ context.Context, id string, now time.Time) (*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || !now.Before(intent.ExpiresAt) {
		return nil, r.classifyMissLocked(id)
	}
	delete(r.intents, id)
	cp := *intent
	return &cp, nil
}

func (r *memIntentRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.BookingIntent{}
	for _, intent := range r.intents {
		if !now.Before(intent.ExpiresAt) && len(out) < limit {
			cp := *intent
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memIntentRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intents, id)
	return nil
}

func (r *memIntentRepo) DeleteBySession(_ context.Context, sessionID string) ([]*model.BookingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	out := []*model.BookingIntent{}
	for id, intent := range r.intents {
		if intent.SessionID != sessionID {
			continue
		}
		if now.Before(intent.ExpiresAt) {
			cp := *intent
			out = append(out, &cp)
		}
		delete(r.intents, id)
	}
	return out, nil
}

type memLockRepo struct {
	mu         sync.Mutex
	held       map[string]struct{}
	onAcquired func(sessionID string)
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{held: make(map[string]struct{})}
}

func (r *memLockRepo) Acquire(_ context.Context, sessionID string) error {
	r.mu.Lock()
	if _, ok := r.held[sessionID]; ok {
		r.mu.Unlock()
		return reserrors.ErrLockHeld
	}
	r.held[sessionID] = struct{}{}
	r.mu.Unlock()

	if r.onAcquired != nil {
		r.onAcquired(sessionID)
	}
	return nil
}

func (r *memLockRepo) Release(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, sessionID)
	return nil
}

type memGuardRepo struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemGuardRepo() *memGuardRepo {
	return &memGuardRepo{seen: make(map[string]struct{})}
}

func (r *memGuardRepo) Record(_ context.Context, releaseKey string, spots int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[releaseKey]; ok {
		return reserrors.ErrDuplicateRelease
	}
	r.seen[releaseKey] = struct{}{}
	return nil
}

type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (r *memBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking.CreatedAt = time.Now().UTC()
	cp := *booking
	r.bookings[booking.ID] = &cp
	return nil
}

func (r *memBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, reserrors.ErrBookingNotFound
	}
	cp := *booking
	return &cp, nil
}

func (r *memBookingRepo) FindBySession(_ context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if b.SessionID == sessionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBookingRepo) FindConfirmedBySession(_ context.Context, sessionID string) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if b.SessionID == sessionID && b.Status == model.BookingConfirmed {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBookingRepo) CountBySession(_ context.Context, sessionID string) (int64, error) {
	bookings, _ := r.FindBySession(nil, sessionID, 0, 0)
	return int64(len(bookings)), nil
}

func (r *memBookingRepo) UpdateStatus(_ context.Context, id, from, to string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok || booking.Status != from {
		return nil, reserrors.ErrBookingNotFound
	}
	booking.Status = to
	cp := *booking
	return &cp, nil
}

func (r *memBookingRepo) SetPaymentStatus(_ context.Context, id, paymentStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if booking, ok := r.bookings[id]; ok {
		booking.PaymentStatus = paymentStatus
	}
	return nil
}

type memReportRepo struct {
	mu      sync.Mutex
	reports map[string]*model.CancellationReport
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{reports: make(map[string]*model.CancellationReport)}
}

func (r *memReportRepo) Upsert(_ context.Context, report *model.CancellationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	r.reports[report.SessionID] = &cp
	return nil
}

func (r *memReportRepo) FindBySessionID(_ context.Context, sessionID string) (*model.CancellationReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[sessionID]
	if !ok {
		return nil, reserrors.ErrReportNotFound
	}
	cp := *report
	return &cp, nil
}

// capturePublisher records every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *capturePublisher) byType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []events.Event{}
	for _, evt := range p.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type mockPaymentGateway struct {
	mu         sync.Mutex
	calls      []string
	refundFunc func(bookingID string, amountCents int64) (string, error)
}

func (m *mockPaymentGateway) RequestRefund(_ context.Context, bookingID string, amountCents int64) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, bookingID)
	m.mu.Unlock()
	if m.refundFunc != nil {
		return m.refundFunc(bookingID, amountCents)
	}
	return "refund-" + bookingID, nil
}

func (m *mockPaymentGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockNotifier struct {
	mu       sync.Mutex
	calls    []string
	sendFunc func(recipient string) error
}

func (m *mockNotifier) Send(_ context.Context, recipient, template string, data map[string]any) error {
	m.mu.Lock()
	m.calls = append(m.calls, recipient)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(recipient)
	}
	return nil
}

func (m *mockNotifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func futureExpiry() time.Time {
	return time.Now().UTC().Add(5 * time.Minute)
}

func pastExpiry() time.Time {
	return time.Now().UTC().Add(-time.Minute)
}

// fixture wires the full service stack on in-memory repositories.
type fixture struct {
	cfg        *config.Config
	sessions   *memSessionRepo
	intents    *memIntentRepo
	bookings   *memBookingRepo
	locks      *memLockRepo
	guard      *memGuardRepo
	reports    *memReportRepo
	publisher  *capturePublisher
	payments   *mockPaymentGateway
	notifier   *mockNotifier
	ledger     CapacityLedger
	intentSvc  IntentService
	sessionSvc SessionService
	cancelSvc  CancellationService
}

func newFixture() *fixture {
	cfg := &config.Config{
		MaxSessionCapacity:     12,
		IntentTTL:              300 * time.Second,
		IntentSweepInterval:    30 * time.Second,
		NearlyFullThreshold:    3,
		LargeGroupThreshold:    5,
		DuplicateWindow:        10 * time.Minute,
		AlertCooldown:          time.Hour,
		SuspiciousSessionCount: 3,
		CancelWorkers:          4,
		Log:                    logger.New(logger.Config{Level: logger.ERROR}),
	}

	f := &fixture{
		cfg:       cfg,
		sessions:  newMemSessionRepo(),
		intents:   newMemIntentRepo(),
		bookings:  newMemBookingRepo(),
		locks:     newMemLockRepo(),
		guard:     newMemGuardRepo(),
		reports:   newMemReportRepo(),
		publisher: &capturePublisher{},
		payments:  &mockPaymentGateway{},
		notifier:  &mockNotifier{},
	}

	v := validator.NewReservationValidator(cfg.Log)
	f.ledger = NewCapacityLedger(f.sessions, f.intents, f.guard, f.publisher, cfg)
	f.intentSvc = NewIntentService(f.intents, f.sessions, f.bookings, f.locks, f.ledger, v, f.publisher, cfg)
	f.sessionSvc = NewSessionService(f.sessions, f.bookings, f.ledger, v, cfg)
	f.cancelSvc = NewCancellationService(f.sessions, f.intents, f.bookings, f.reports, f.ledger, f.payments, f.notifier, v, f.publisher, cfg)
	return f
}

func (f *fixture) seedSession(id string, current, max int, status string) *model.Session {
	session := &model.Session{
		ID:              id,
		CourseType:      "rock_climbing",
		StartTime:       time.Now().Add(24 * time.Hour),
		EndTime:         time.Now().Add(26 * time.Hour),
		Venue:           "North Wall",
		MaxCapacity:     max,
		CurrentBookings: current,
		PriceCents:      4500,
		Status:          status,
	}
	f.sessions.put(session)
	return session
}

func (f *fixture) seedIntent(id, sessionID, holder string, spots int, expiresAt time.Time) *model.BookingIntent {
	intent := &model.BookingIntent{
		ID:        id,
		SessionID: sessionID,
		HolderKey: holder,
		Spots:     spots,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	f.intents.put(intent)
	return intent
}

func (f *fixture) seedBooking(id, sessionID, email string, spots int, paymentStatus string) *model.Booking {
	booking := &model.Booking{
		ID:            id,
		SessionID:     sessionID,
		ContactName:   "Dana Levi",
		ContactEmail:  email,
		Spots:         spots,
		Status:        model.BookingConfirmed,
		PaymentStatus: paymentStatus,
		AmountCents:   4500 * int64(spots),
		CreatedAt:     time.Now().UTC(),
	}
	f.bookings.mu.Lock()
	cp := *booking
	f.bookings.bookings[id] = &cp
	f.bookings.mu.Unlock()
	return booking
}

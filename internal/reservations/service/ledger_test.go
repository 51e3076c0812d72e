package service

import (
	"context"
	"sync"
	"testing"

	apperrors "coursebook/pkg/errors"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

func TestConfirmRejectsOverCapacity(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 9, 10, model.SessionScheduled)

	_, err := f.ledger.Confirm(context.Background(), "sess-1", 2)
	if !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("expected CAPACITY_EXCEEDED, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Details["requested"] != 2 || appErr.Details["remaining"] != 1 {
		t.Errorf("unexpected error details: %v", appErr.Details)
	}

	session, err := f.ledger.Confirm(context.Background(), "sess-1", 1)
	if err != nil {
		t.Fatalf("confirm within capacity failed: %v", err)
	}
	if session.CurrentBookings != 10 {
		t.Errorf("expected 10 current bookings, got %d", session.CurrentBookings)
	}
}

func TestConfirmUnknownSession(t *testing.T) {
	f := newFixture()

	_, err := f.ledger.Confirm(context.Background(), "missing", 1)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestConfirmTerminalSession(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 0, 10, model.SessionCancelled)

	_, err := f.ledger.Confirm(context.Background(), "sess-1", 1)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestConcurrentConfirmLastSeat(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 9, 10, model.SessionScheduled)

	const contenders = 8
	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Confirm(context.Background(), "sess-1", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeCapacityExceeded):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != contenders-1 {
		t.Errorf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}

	session, _ := f.sessions.FindByID(context.Background(), "sess-1")
	if session.CurrentBookings != session.MaxCapacity {
		t.Errorf("expected %d bookings, got %d", session.MaxCapacity, session.CurrentBookings)
	}
}

func TestReleaseIsIdempotentPerKey(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 6, 10, model.SessionScheduled)

	session, released, err := f.ledger.Release(context.Background(), "sess-1", "cancel-abc", 2)
	if err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if !released || session.CurrentBookings != 4 {
		t.Fatalf("expected released=true with 4 bookings, got %v %d", released, session.CurrentBookings)
	}

	session, released, err = f.ledger.Release(context.Background(), "sess-1", "cancel-abc", 2)
	if err != nil {
		t.Fatalf("repeated release failed: %v", err)
	}
	if released {
		t.Error("expected repeated release key to be a no-op")
	}
	if session.CurrentBookings != 4 {
		t.Errorf("expected bookings untouched at 4, got %d", session.CurrentBookings)
	}

	if evts := f.publisher.byType(events.TypeSeatsReleased); len(evts) != 1 {
		t.Errorf("expected 1 seats.released event, got %d", len(evts))
	}
}

func TestReleaseClampsAtZero(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 1, 10, model.SessionScheduled)

	session, released, err := f.ledger.Release(context.Background(), "sess-1", "cancel-xyz", 5)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released || session.CurrentBookings != 0 {
		t.Errorf("expected count clamped to 0, got %d", session.CurrentBookings)
	}
}

func TestAvailabilityIncludesActiveHolds(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 4, 10, model.SessionScheduled)
	f.seedIntent("int-1", "sess-1", "holder-a", 2, futureExpiry())
	f.seedIntent("int-2", "sess-1", "holder-b", 1, pastExpiry())

	avail, err := f.ledger.Availability(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if avail.Current != 4 || avail.Max != 10 || avail.Remaining != 4 {
		t.Errorf("unexpected snapshot: %+v", avail)
	}
	if avail.ActiveIntentCount != 1 || avail.ActiveIntentSpots != 2 {
		t.Errorf("expected only the unexpired hold counted, got %+v", avail)
	}
}

// A hold on the last seat makes the session read as full even though the
// confirmed count sits below capacity.
func TestAvailabilityFullUnderLastSeatHold(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 11, 12, model.SessionScheduled)

	intent := &model.BookingIntent{SessionID: "sess-1", HolderKey: "holder-a", Spots: 1}
	if err := f.intentSvc.Create(context.Background(), intent); err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	avail, err := f.ledger.Availability(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if avail.Remaining != 0 {
		t.Errorf("expected 0 remaining with the last seat held, got %d", avail.Remaining)
	}
	if avail.Current != 11 || avail.ActiveIntentSpots != 1 {
		t.Errorf("unexpected snapshot: %+v", avail)
	}
}

func TestAvailabilityRemainingNeverNegative(t *testing.T) {
	f := newFixture()
	f.seedSession("sess-1", 10, 10, model.SessionScheduled)
	f.seedIntent("int-1", "sess-1", "holder-a", 2, futureExpiry())

	avail, err := f.ledger.Availability(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if avail.Remaining != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", avail.Remaining)
	}
}

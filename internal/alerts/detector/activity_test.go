package detector

import (
	"testing"
	"time"
)

func TestActivityWindowPrunesOldEntries(t *testing.T) {
	w := NewActivityWindow(10 * time.Minute)
	base := time.Now()

	hits, distinct := w.Record("dana@example.com", "sess-1", base)
	if hits != 1 || distinct != 1 {
		t.Fatalf("unexpected first record: %d %d", hits, distinct)
	}

	hits, distinct = w.Record("dana@example.com", "sess-1", base.Add(time.Minute))
	if hits != 2 || distinct != 1 {
		t.Fatalf("unexpected second record: %d %d", hits, distinct)
	}

	hits, distinct = w.Record("dana@example.com", "sess-2", base.Add(2*time.Minute))
	if hits != 1 || distinct != 2 {
		t.Fatalf("unexpected cross-session record: %d %d", hits, distinct)
	}

	// Everything before this point falls out of the window.
	hits, distinct = w.Record("dana@example.com", "sess-1", base.Add(15*time.Minute))
	if hits != 1 || distinct != 1 {
		t.Fatalf("expected stale entries pruned, got %d %d", hits, distinct)
	}
}

func TestActivityWindowIsolatesIdentities(t *testing.T) {
	w := NewActivityWindow(10 * time.Minute)
	now := time.Now()

	w.Record("dana@example.com", "sess-1", now)
	hits, _ := w.Record("lee@example.com", "sess-1", now)
	if hits != 1 {
		t.Errorf("expected identities tracked separately, got %d hits", hits)
	}
}

func TestCooldownStoreConcurrentAcquire(t *testing.T) {
	store := NewCooldownStore(time.Hour)
	defer store.Stop()

	acquired := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			acquired <- store.TryAcquire("duplicate_booking_attempt:sess-1:dana@example.com")
		}()
	}

	wins := 0
	for i := 0; i < 10; i++ {
		if <-acquired {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one acquisition, got %d", wins)
	}
}

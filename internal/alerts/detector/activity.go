package detector

import (
	"sync"
	"time"
)

type activityEntry struct {
	sessionID string
	at        time.Time
}

// ActivityWindow holds recent booking activity per identity inside a sliding
// window. Entries older than the window are pruned on every touch.
type ActivityWindow struct {
	mu      sync.Mutex
	entries map[string][]activityEntry
	window  time.Duration
}

func NewActivityWindow(window time.Duration) *ActivityWindow {
	return &ActivityWindow{
		entries: make(map[string][]activityEntry),
		window:  window,
	}
}

// Record notes one booking by identity and returns the in-window totals
// after recording: hits against the same session, and distinct sessions.
func (w *ActivityWindow) Record(identity, sessionID string, at time.Time) (sessionHits, distinctSessions int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := at.Add(-w.window)
	kept := w.entries[identity][:0]
	for _, entry := range w.entries[identity] {
		if entry.at.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	kept = append(kept, activityEntry{sessionID: sessionID, at: at})
	w.entries[identity] = kept

	sessions := make(map[string]struct{}, len(kept))
	for _, entry := range kept {
		sessions[entry.sessionID] = struct{}{}
		if entry.sessionID == sessionID {
			sessionHits++
		}
	}
	return sessionHits, len(sessions)
}

package detector

import (
	"sync"
	"time"
)

// CooldownStore suppresses repeated alerts for the same type, session and
// identity within the cooldown window. TryAcquire is check-and-arm in one
// step so concurrent raisers cannot both pass.
type CooldownStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	stopCh chan struct{}
}

func NewCooldownStore(ttl time.Duration) *CooldownStore {
	store := &CooldownStore{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

// TryAcquire reports whether an alert for the key may fire now and, if so,
// arms the cooldown.
func (s *CooldownStore) TryAcquire(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.seen[key]; ok && now.Sub(last) < s.ttl {
		return false
	}

	s.seen[key] = now
	return true
}

func (s *CooldownStore) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, last := range s.seen {
				if time.Since(last) > s.ttl {
					delete(s.seen, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *CooldownStore) Stop() {
	close(s.stopCh)
}

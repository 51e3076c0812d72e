package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"coursebook/pkg/logger"
)

// HolderExtractor resolves the identity a request's rate budget is charged
// against: the booking holder key when supplied, the client IP otherwise.
type HolderExtractor func(r *http.Request) string

type HolderRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor HolderExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewHolderRateLimiter(limit int, window time.Duration, extractor HolderExtractor, log *logger.Logger) *HolderRateLimiter {
	limiter := &HolderRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *HolderRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for holder, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, holder)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *HolderRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *HolderRateLimiter) Allow(holder string) bool {
	if holder == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := make([]time.Time, 0, len(rl.requests[holder]))
	for _, ts := range rl.requests[holder] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[holder] = valid
		return false
	}

	rl.requests[holder] = append(valid, now)
	return true
}

func HolderRateLimit(limiter *HolderRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			holder := limiter.extractor(r)

			if !limiter.Allow(holder) {
				rejectRateLimited(w, limiter.log, r, holder)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, holder string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		if id, ok := rid.(string); ok {
			requestID = id
		}
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"holder", holder,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

// DefaultHolderExtractor charges the X-Holder-Key header when present and
// falls back to the remote IP.
func DefaultHolderExtractor(r *http.Request) string {
	if key := r.Header.Get("X-Holder-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package sweeper runs the periodic expired-intent cleanup. Expiry itself is
// enforced lazily by query filters; the sweeper reclaims the documents and
// emits the expiry events watchers rely on.
package sweeper

import (
	"context"
	"time"

	"coursebook/pkg/logger"
)

// SweepFunc deletes one batch of expired holds and reports how many went.
type SweepFunc func(ctx context.Context) (int, error)

type Sweeper struct {
	interval time.Duration
	sweep    SweepFunc
	log      *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(interval time.Duration, sweep SweepFunc, log *logger.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		sweep:    sweep,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// does not wait a full interval to reclaim a backlog.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.run(ctx)
	s.log.Info("Intent sweeper started", "interval", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.sweep(ctx); err != nil {
		s.log.Error("Intent sweep failed", "error", err)
	}
}

func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("Intent sweeper stopped")
}

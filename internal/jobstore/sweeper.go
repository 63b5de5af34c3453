package jobstore

import (
	"context"
	"time"

	"github.com/fedutinova/pagegen/internal/job"
)

// StartSweeper launches the background eviction loop. Calling it while the loop
// is already running is a no-op.
func (s *Store) StartSweeper(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.sweepCancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.sweepCancel = cancel
	s.sweepDone = done

	go s.sweepLoop(runCtx, done)
	s.log.Info("job sweeper started", "interval", s.sweepInterval, "ttl", s.ttl)
}

// StopSweeper cancels the eviction loop and blocks until it has exited.
func (s *Store) StopSweeper() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.sweepCancel == nil {
		return
	}
	s.sweepCancel()
	<-s.sweepDone
	s.sweepCancel = nil
	s.sweepDone = nil
	s.log.Info("job sweeper stopped")
}

func (s *Store) sweepLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes every job whose expiry has passed and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	var evicted []job.Job
	s.mu.Lock()
	removed := 0
	for id, j := range s.jobs {
		if !j.ExpiresAt.After(now) {
			if s.onEvict != nil {
				evicted = append(evicted, clone(j))
			}
			delete(s.jobs, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.Debug("swept expired jobs", "removed", removed)
	}
	if s.onEvict != nil && len(evicted) > 0 {
		s.onEvict(evicted)
	}
	if s.onSweep != nil {
		s.onSweep(removed)
	}
	return removed
}

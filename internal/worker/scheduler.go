package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "fintrack/internal/log"
)

// Scheduler runs BudgetWatcher.Check on a fixed interval so alerts surface
// even when no expense events arrive.
type Scheduler struct {
	watcher  *BudgetWatcher
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(watcher *BudgetWatcher, interval time.Duration) *Scheduler {
	return &Scheduler{watcher: watcher, interval: interval}
}

// Start begins the check loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid check interval %v", s.interval)
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.watcher.logger.InfoContext(ctx, "Budget scheduler started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for it to exit or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.watcher.logger.InfoContext(ctx, "Budget scheduler stopped")
		return nil
	case <-ctx.Done():
		s.watcher.logger.WarnContext(ctx, "Budget scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	if _, err := s.watcher.Check(ctx); err != nil && ctx.Err() == nil {
		s.watcher.logger.ErrorContext(ctx, "Periodic budget check failed", applog.FieldError, err.Error())
	}
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// DefaultInterval between scheduled runs
const DefaultInterval = 5 * time.Minute

// ErrNotRunning is returned by Trigger when the scheduler is not started or already stopped
var ErrNotRunning = errors.New("scheduler is not running")

// Runner is a single ingestion run
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs ingestion at start and then on a fixed interval. Runs are independent,
// a slow run does not delay or cancel the next one.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler makes a stopped scheduler
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{runner: runner, interval: interval}
}

// Start begins the schedule, the first run starts immediately
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(s.ctx)
	lgr.Printf("[INFO] ingestion scheduler started with interval %v", s.interval)
}

// Stop cancels the schedule and waits for in-flight runs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	lgr.Printf("[INFO] ingestion scheduler stopped")
}

// Trigger starts one run now without waiting for it
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return ErrNotRunning
	}
	s.spawn(s.ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.spawn(ctx)
		}
	}
}

// spawn starts a run in its own goroutine, caller holds a wg count or the lock
func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.runner.Run(ctx)
		if err != nil {
			lgr.Printf("[WARN] ingestion run failed: %v", err)
			return
		}
		lgr.Printf("[DEBUG] ingestion run completed, %d new items", res.Inserted)
	}()
}

package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// RunFunc executes one tracker run for the named listing
type RunFunc func(ctx context.Context, listing string) error

// Job schedules a listing every Interval. A zero interval means manual triggers only.
type Job struct {
	Listing  string
	Interval time.Duration
}

// Scheduler executes listing runs one at a time. Triggers for a listing that
// arrive while runs are in progress collapse into a single pending run.
type Scheduler struct {
	run    RunFunc
	jobs   map[string]Job
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(run RunFunc, jobs ...Job) *Scheduler {
	s := &Scheduler{
		run:     run,
		jobs:    make(map[string]Job, len(jobs)),
		logger:  util.GetLogger(),
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, j := range jobs {
		s.jobs[j.Listing] = j
	}
	return s
}

// Trigger queues a run of listing. It returns false for unknown listings.
func (s *Scheduler) Trigger(listing string) bool {
	if _, ok := s.jobs[listing]; !ok {
		return false
	}

	s.mu.Lock()
	s.pending[listing] = struct{}{}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Start runs the scheduler and blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler", zap.Int("jobs", len(s.jobs)))

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.tick(ctx, job)
		}(job)
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("Scheduler stopped")
			return nil
		case <-s.wake:
			s.runPending(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger(job.Listing)
		}
	}
}

func (s *Scheduler) runPending(ctx context.Context) {
	for _, listing := range s.takePending() {
		if ctx.Err() != nil {
			return
		}

		s.logger.Info("Scheduled run starting", zap.String("listing", listing))
		if err := s.run(ctx, listing); err != nil {
			s.logger.Error("Scheduled run failed",
				zap.String("listing", listing),
				zap.Error(err))
			continue
		}
		s.logger.Info("Scheduled run finished", zap.String("listing", listing))
	}
}

func (s *Scheduler) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := make([]string, 0, len(s.pending))
	for l := range s.pending {
		listings = append(listings, l)
	}
	s.pending = make(map[string]struct{})
	sort.Strings(listings)
	return listings
}

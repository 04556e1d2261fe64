package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 10 * time.Minute

// Refresher resolves the current cycle and warms caches.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes the forecast service so new cycles are picked
// up, stale grid files are cleaned up and the basin dataset is preloaded.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. Each run is bounded by timeout, or by the
// interval when timeout is not positive.
func New(r Refresher, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: r,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the refresh job, runs it once right away and starts the
// underlying scheduler. Runs never overlap.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log.Println("INFO: scheduler: running refresh job")
	start := time.Now()
	err := s.refresher.Refresh(ctx)
	switch {
	case err == nil:
		log.Printf("INFO: scheduler: completed refresh job in %s", time.Since(start).Round(time.Millisecond))
	case errors.Is(err, modelrun.ErrNoCycle):
		log.Printf("WARN: scheduler: %v", err)
	default:
		log.Printf("ERROR: scheduler: refresh failed: %v", err)
	}
}

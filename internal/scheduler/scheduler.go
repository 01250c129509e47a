package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher refreshes whatever location is currently displayed.
type Refresher interface {
	RefreshCurrent(ctx context.Context)
}

// Scheduler periodically refreshes the displayed weather.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: auto-refresh disabled")
		return nil
	}

	// gocron would run the job immediately; the first refresh waits a full interval.
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running weather refresh job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.refresher.RefreshCurrent(ctx)
	log.Println("scheduler: completed weather refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

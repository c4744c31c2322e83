// Package scheduler runs the periodic maintenance jobs of examgate:
// notification polling, session pruning and avatar cache cleanup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobFunc is a schedulable job.
type JobFunc func(ctx context.Context) error

// Scheduler wraps gocron and tracks the registered jobs by name.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: gocronScheduler,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// AddJob registers a job that runs at the given interval. Jobs are singletons;
// a run that is still in flight when the next tick fires suppresses the tick.
func (s *Scheduler) AddJob(name string, interval time.Duration, fn JobFunc) error {
	_, err := s.gocron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := fn(s.ctx); err != nil {
				log.Error("scheduled job failed", "job", name, "error", err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.gocron.Start()
	for _, job := range s.gocron.Jobs() {
		if nextRun, err := job.NextRun(); err == nil {
			log.Debug("scheduled job", "job", job.Name(), "next_run", nextRun)
		}
	}
	log.Info("Job scheduler started")
}

// Stop stops the scheduler and cancels running jobs.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

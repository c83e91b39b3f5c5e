// Package scheduler runs the recurring ingest job on a cron schedule.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps the cron runner.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a job under a cron spec.
func (s *Scheduler) Add(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", spec, err)
	}
	return nil
}

// Start begins running scheduled jobs in their own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/database"
)

// MaintenanceJob keeps the readings archive healthy: it truncates the WAL so
// the sidecar file cannot grow unbounded between drops, then runs the full
// integrity check. Problems are logged, never fatal; the next scheduled run
// retries.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates the scheduled database maintenance job.
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("component", "maintenance_job").Logger(),
	}
}

// Run implements cron.Job.
func (j *MaintenanceJob) Run() {
	start := time.Now()

	if err := j.db.WALCheckpoint(""); err != nil {
		j.log.Error().Err(err).Msg("WAL checkpoint failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("Database integrity check failed")
		return
	}

	j.log.Info().Dur("elapsed", time.Since(start)).Msg("Database maintenance complete")
}

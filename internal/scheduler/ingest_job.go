package scheduler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/pipeline"
)

// IngestJob processes the previous day's CSV drop for every turbine group
// folder under the drop directory. Each drop folder is named data_group_N and
// holds one YYYY-MM-DD.csv per day.
type IngestJob struct {
	dropDir string
	runner  *pipeline.Runner
	now     func() time.Time // injectable clock for tests
	log     zerolog.Logger
}

// NewIngestJob creates the scheduled ingest job.
func NewIngestJob(dropDir string, runner *pipeline.Runner, log zerolog.Logger) *IngestJob {
	return &IngestJob{
		dropDir: dropDir,
		runner:  runner,
		now:     time.Now,
		log:     log.With().Str("component", "ingest_job").Logger(),
	}
}

// Run implements cron.Job. A failure in one group's drop does not stop the
// other groups; each failure is logged and the job moves on.
func (j *IngestJob) Run() {
	date := domain.Midnight(j.now().AddDate(0, 0, -1))
	j.log.Info().Str("date", domain.DateString(date)).Msg("Scheduled ingest started")

	entries, err := os.ReadDir(j.dropDir)
	if err != nil {
		j.log.Error().Err(err).Str("dir", j.dropDir).Msg("Failed to read drop directory")
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		group, err := domain.GroupFromName(e.Name())
		if err != nil {
			continue
		}

		file := filepath.Join(j.dropDir, e.Name(), domain.DateString(date)+".csv")
		if _, err := os.Stat(file); err != nil {
			j.log.Warn().Int("group", group.ID).Str("file", file).Msg("No drop file for date")
			continue
		}

		if _, err := j.runner.RunFile(file, group, date); err != nil {
			j.log.Error().Err(err).Int("group", group.ID).Str("file", file).Msg("Scheduled ingest run failed")
		}
	}
}

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/ingest"
)

// Runner executes pipeline runs from CSV drops on disk. It is the shared
// entry point for the CLI, the scheduled ingest job and the HTTP trigger.
type Runner struct {
	reader *ingest.Reader
	pipe   *Pipeline
	log    zerolog.Logger
}

// NewRunner creates a runner around a built pipeline.
func NewRunner(pipe *Pipeline, log zerolog.Logger) *Runner {
	return &Runner{
		reader: ingest.NewReader(log),
		pipe:   pipe,
		log:    log.With().Str("component", "runner").Logger(),
	}
}

// RunFile processes one CSV file for a turbine group. When targetDate is
// non-zero, only rows on that UTC date enter the pipeline; a batch left empty
// by the filter is skipped without error.
func (r *Runner) RunFile(path string, group domain.TurbineGroup, targetDate time.Time) (*Result, error) {
	batch, err := r.reader.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !targetDate.IsZero() {
		batch = ingest.FilterDate(batch, targetDate)
		if len(batch.Rows) == 0 {
			r.log.Warn().Str("file", filepath.Base(path)).Str("date", domain.DateString(targetDate)).
				Msg("No rows for target date, skipping")
			return &Result{Stage: StageDone}, nil
		}
	}

	return r.pipe.Run(batch, group)
}

// RunFolder processes a folder of date-named CSV files (YYYY-MM-DD.csv) in
// date order, one pipeline run per file. The turbine group is resolved from
// the folder name (data_group_N). Processing stops at the first failed run;
// files before it are already committed, which matches the per-day drop
// model: re-running the folder skips their stored rows.
func (r *Runner) RunFolder(dir string) error {
	group, err := domain.GroupFromName(filepath.Base(dir))
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read drop folder %s: %w", dir, err)
	}

	type drop struct {
		path string
		date time.Time
	}
	var drops []drop
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		date, err := ingest.DateFromFilename(e.Name())
		if err != nil {
			r.log.Warn().Str("file", e.Name()).Msg("Skipping file without a date name")
			continue
		}
		drops = append(drops, drop{path: filepath.Join(dir, e.Name()), date: date})
	}

	sort.Slice(drops, func(i, j int) bool { return drops[i].date.Before(drops[j].date) })

	r.log.Info().Int("files", len(drops)).Int("group", group.ID).Str("folder", dir).Msg("Backfill started")

	for _, d := range drops {
		if _, err := r.RunFile(d.path, group, d.date); err != nil {
			return fmt.Errorf("backfill stopped at %s: %w", filepath.Base(d.path), err)
		}
	}

	return nil
}

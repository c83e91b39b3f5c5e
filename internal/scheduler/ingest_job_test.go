package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfleet/turbinewatch/internal/config"
	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/pipeline"
)

type recordingSink struct {
	saves     int
	turbineID []int
}

func (s *recordingSink) Save(readings []domain.Reading, _ []domain.DailySummary, _ []domain.AnomalyRecord) error {
	s.saves++
	for _, r := range readings {
		s.turbineID = append(s.turbineID, r.TurbineID)
	}
	return nil
}

type emptyHistory struct{}

func (emptyHistory) DailyTotals(turbineID int, before time.Time, window int) ([]float64, error) {
	return nil, nil
}

func testJob(t *testing.T, dropDir string, sink pipeline.Sink) *IngestJob {
	t.Helper()
	cfg := config.DefaultPipeline()
	cfg.Workers = 0
	runner := pipeline.NewRunner(pipeline.New(cfg, nil, emptyHistory{}, sink, zerolog.Nop()), zerolog.Nop())

	job := NewIngestJob(dropDir, runner, zerolog.Nop())
	job.now = func() time.Time {
		return time.Date(2025, 4, 9, 0, 30, 0, 0, time.UTC)
	}
	return job
}

func writeDrop(t *testing.T, dropDir, group, file, body string) {
	t.Helper()
	dir := filepath.Join(dropDir, group)
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := "timestamp,turbine_id,wind_speed,wind_direction,power_output\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
}

func TestIngestJob_ProcessesYesterdaysDropPerGroup(t *testing.T) {
	dropDir := t.TempDir()
	writeDrop(t, dropDir, "data_group_1", "2025-04-08.csv", "2025-04-08 00:00:00,1,10,180,100\n")
	writeDrop(t, dropDir, "data_group_2", "2025-04-08.csv", "2025-04-08 00:00:00,7,10,180,100\n")

	sink := &recordingSink{}
	testJob(t, dropDir, sink).Run()

	assert.Equal(t, 2, sink.saves)
	assert.ElementsMatch(t, []int{1, 7}, sink.turbineID)
}

func TestIngestJob_SkipsGroupsWithoutDrop(t *testing.T) {
	dropDir := t.TempDir()
	writeDrop(t, dropDir, "data_group_1", "2025-04-08.csv", "2025-04-08 00:00:00,1,10,180,100\n")
	// Group 2's folder exists but has no file for the date
	require.NoError(t, os.MkdirAll(filepath.Join(dropDir, "data_group_2"), 0755))

	sink := &recordingSink{}
	testJob(t, dropDir, sink).Run()

	assert.Equal(t, 1, sink.saves)
}

func TestIngestJob_IgnoresUnrelatedEntries(t *testing.T) {
	dropDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dropDir, "archive"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dropDir, "readme.txt"), []byte("x"), 0644))

	sink := &recordingSink{}
	testJob(t, dropDir, sink).Run()

	assert.Equal(t, 0, sink.saves)
}

func TestIngestJob_OneGroupFailureDoesNotStopOthers(t *testing.T) {
	dropDir := t.TempDir()
	// Group 1's drop carries a turbine id from group 2, so its run fails
	writeDrop(t, dropDir, "data_group_1", "2025-04-08.csv", "2025-04-08 00:00:00,7,10,180,100\n")
	writeDrop(t, dropDir, "data_group_2", "2025-04-08.csv", "2025-04-08 00:00:00,7,10,180,100\n")

	sink := &recordingSink{}
	testJob(t, dropDir, sink).Run()

	assert.Equal(t, 1, sink.saves)
	assert.Equal(t, []int{7}, sink.turbineID)
}

func TestIngestJob_FiltersSpilloverRows(t *testing.T) {
	dropDir := t.TempDir()
	writeDrop(t, dropDir, "data_group_1", "2025-04-08.csv",
		"2025-04-08 23:55:00,1,10,180,100\n2025-04-09 00:00:00,1,10,180,100\n")

	sink := &recordingSink{}
	testJob(t, dropDir, sink).Run()

	assert.Equal(t, 1, sink.saves)
	assert.Len(t, sink.turbineID, 1)
}

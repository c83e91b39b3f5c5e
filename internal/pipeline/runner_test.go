package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// sinkFunc adapts a closure over persisted power outputs into a Sink.
type sinkFunc struct {
	fn func(powers []float64)
}

func (s *sinkFunc) Save(readings []domain.Reading, _ []domain.DailySummary, _ []domain.AnomalyRecord) error {
	var powers []float64
	for _, r := range readings {
		powers = append(powers, r.PowerOutput)
	}
	s.fn(powers)
	return nil
}

const runnerCSVHeader = "timestamp,turbine_id,wind_speed,wind_direction,power_output\n"

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(runnerCSVHeader+body), 0644))
	return path
}

func testRunner(sink Sink) *Runner {
	return NewRunner(testPipeline(sink, nil), zerolog.Nop())
}

func TestRunFile_ProcessesWholeFile(t *testing.T) {
	sink := &recordingSink{}
	path := writeCSV(t, t.TempDir(), "2025-04-08.csv",
		"2025-04-08 00:00:00,1,10,180,100\n"+
			"2025-04-08 00:05:00,2,11,182,90\n")

	res, err := testRunner(sink).RunFile(path, group1(t), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 2, res.RowsKept)
	assert.Equal(t, 1, sink.calls)
}

func TestRunFile_FiltersToTargetDate(t *testing.T) {
	sink := &recordingSink{}
	path := writeCSV(t, t.TempDir(), "2025-04-08.csv",
		"2025-04-08 23:55:00,1,10,180,100\n"+
			"2025-04-09 00:00:00,1,10,180,100\n") // spillover row from the next day

	res, err := testRunner(sink).RunFile(path, group1(t),
		time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsIn)
	require.Len(t, sink.readings, 1)
	assert.Equal(t, 8, sink.readings[0].Timestamp.Day())
}

func TestRunFile_EmptyAfterFilterIsSkipped(t *testing.T) {
	sink := &recordingSink{}
	path := writeCSV(t, t.TempDir(), "2025-04-08.csv",
		"2025-04-08 00:00:00,1,10,180,100\n")

	res, err := testRunner(sink).RunFile(path, group1(t),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 0, sink.calls)
}

func TestRunFile_MissingFile(t *testing.T) {
	_, err := testRunner(nil).RunFile(filepath.Join(t.TempDir(), "nope.csv"), group1(t), time.Time{})
	require.Error(t, err)
}

func TestRunFolder_ProcessesFilesInDateOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data_group_1")
	require.NoError(t, os.Mkdir(dir, 0755))

	// Written out of order on purpose
	writeCSV(t, dir, "2025-04-09.csv", "2025-04-09 00:00:00,1,10,180,200\n")
	writeCSV(t, dir, "2025-04-08.csv", "2025-04-08 00:00:00,1,10,180,100\n")
	writeCSV(t, dir, "notes.txt", "ignored\n")

	var order []float64
	sink := &sinkFunc{fn: func(readings []float64) { order = append(order, readings...) }}

	require.NoError(t, testRunner(sink).RunFolder(dir))
	assert.Equal(t, []float64{100, 200}, order)
}

func TestRunFolder_UnknownGroupName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "misc")
	require.NoError(t, os.Mkdir(dir, 0755))

	err := testRunner(nil).RunFolder(dir)
	require.Error(t, err)
}

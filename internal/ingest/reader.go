// Package ingest turns raw per-group CSV drops into clean reading sets.
// It owns the three pre-aggregation stages: reading, batch validation and
// cleaning (missing-value and outlier resolution).
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// timestampLayouts are accepted source timestamp formats, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Reader parses daily CSV batches into raw reading batches.
type Reader struct {
	log zerolog.Logger
}

// NewReader creates a new CSV batch reader.
func NewReader(log zerolog.Logger) *Reader {
	return &Reader{
		log: log.With().Str("component", "reader").Logger(),
	}
}

// ReadFile parses one CSV file into a raw batch. The first row is the header;
// blank cells become missing values and unparsable numeric cells become
// invalid values. Structural problems (unreadable file, ragged rows, no
// header) are errors; cell-level problems are not.
func (r *Reader) ReadFile(path string) (*domain.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	batch, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	r.log.Info().Str("file", filepath.Base(path)).Int("rows", len(batch.Rows)).Msg("Parsed batch")
	return batch, nil
}

// Read parses CSV content from an io.Reader.
func (r *Reader) Read(src io.Reader) (*domain.Batch, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		cols[i] = name
		index[name] = i
	}

	batch := &domain.Batch{Columns: cols}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed row: %w", err)
		}
		batch.Rows = append(batch.Rows, parseRow(record, index))
	}

	return batch, nil
}

// parseRow maps one CSV record into a RawReading. Columns absent from the
// header leave their cells missing; the validator decides whether that is
// acceptable for the batch as a whole.
func parseRow(record []string, index map[string]int) domain.RawReading {
	row := domain.RawReading{
		WindSpeed:     domain.Missing(),
		WindDirection: domain.Missing(),
		PowerOutput:   domain.Missing(),
	}

	if ts, ok := cell(record, index, "timestamp"); ok {
		if t, err := parseTimestamp(ts); err == nil {
			row.Timestamp = t
			row.HasTimestamp = true
		}
	}

	if id, ok := cell(record, index, "turbine_id"); ok {
		if v, err := strconv.Atoi(id); err == nil {
			row.TurbineID = v
			row.HasTurbineID = true
		}
	}

	for _, field := range domain.SensorFields {
		raw, ok := cell(record, index, string(field))
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			row.SetSensor(field, domain.Invalid("not numeric"))
			continue
		}
		row.SetSensor(field, domain.Present(v))
	}

	return row
}

// cell returns the trimmed cell for a column, reporting false when the column
// is absent or the cell is blank.
func cell(record []string, index map[string]int, col string) (string, bool) {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[i])
	if v == "" {
		return "", false
	}
	return v, true
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DateFromFilename extracts the batch date from a daily drop file named
// YYYY-MM-DD.csv.
func DateFromFilename(name string) (time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return domain.ParseDate(base)
}

// FilterDate returns a batch containing only rows whose timestamp falls on
// the target UTC date. Rows without a timestamp are kept; the cleaner drops
// them anyway and counts them.
func FilterDate(batch *domain.Batch, date time.Time) *domain.Batch {
	day := domain.Midnight(date)
	out := &domain.Batch{Columns: batch.Columns}
	for _, row := range batch.Rows {
		if row.HasTimestamp && !domain.Midnight(row.Timestamp).Equal(day) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

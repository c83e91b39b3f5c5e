package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
)

// sensorColumns whitelists the column name per sensor field. This prevents
// SQL injection through field names.
var sensorColumns = map[domain.SensorField]string{
	domain.FieldWindSpeed:     "wind_speed",
	domain.FieldWindDirection: "wind_direction",
	domain.FieldPowerOutput:   "power_output",
}

// ReadingRepository provides access to the clean readings archive.
type ReadingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReadingRepository creates a new readings repository.
func NewReadingRepository(db *sql.DB, log zerolog.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:  db,
		log: log.With().Str("component", "reading_repo").Logger(),
	}
}

// Upsert stores clean readings in a single transaction. On a
// (timestamp, turbine_id) conflict the incoming row either replaces the
// stored one (updateExisting) or is skipped.
func (r *ReadingRepository) Upsert(readings []domain.Reading, updateExisting bool) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.upsertTx(tx, readings, updateExisting)
	})
}

func (r *ReadingRepository) upsertTx(tx *sql.Tx, readings []domain.Reading, updateExisting bool) error {
	query := `
		INSERT INTO turbine_readings (timestamp, turbine_id, wind_speed, wind_direction, power_output)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (timestamp, turbine_id) DO NOTHING
	`
	if updateExisting {
		query = `
			INSERT INTO turbine_readings (timestamp, turbine_id, wind_speed, wind_direction, power_output)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (timestamp, turbine_id) DO UPDATE SET
				wind_speed = excluded.wind_speed,
				wind_direction = excluded.wind_direction,
				power_output = excluded.power_output
		`
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare readings upsert: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		_, err := stmt.Exec(
			reading.Timestamp.UTC().Format(time.RFC3339),
			reading.TurbineID,
			reading.WindSpeed,
			reading.WindDirection,
			reading.PowerOutput,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert reading for turbine %d at %s: %w",
				reading.TurbineID, reading.Timestamp, err)
		}
	}

	return nil
}

// FieldStats returns mean and sample standard deviation of one sensor field
// over a turbine's stored clean history. Implements the cleaner's stats
// provider; n == 0 means the turbine has no history yet.
func (r *ReadingRepository) FieldStats(turbineID int, field domain.SensorField) (float64, float64, int, error) {
	col, ok := sensorColumns[field]
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown sensor field: %s", field)
	}

	query := fmt.Sprintf("SELECT %s FROM turbine_readings WHERE turbine_id = ?", col)
	rows, err := r.db.Query(query, turbineID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to query %s history for turbine %d: %w", col, turbineID, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to scan %s value: %w", col, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, 0, fmt.Errorf("error iterating %s history: %w", col, err)
	}

	switch len(values) {
	case 0:
		return 0, 0, 0, nil
	case 1:
		return values[0], 0, 1, nil
	}
	return stat.Mean(values, nil), stat.StdDev(values, nil), len(values), nil
}

// ForTurbineDate returns a turbine's stored readings on one UTC date, in
// timestamp order.
func (r *ReadingRepository) ForTurbineDate(turbineID int, date time.Time) ([]domain.Reading, error) {
	day := domain.DateString(date)
	query := `
		SELECT timestamp, turbine_id, wind_speed, wind_direction, power_output
		FROM turbine_readings
		WHERE turbine_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`
	start := day + "T00:00:00Z"
	end := domain.DateString(domain.Midnight(date).AddDate(0, 0, 1)) + "T00:00:00Z"

	rows, err := r.db.Query(query, turbineID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for turbine %d on %s: %w", turbineID, day, err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		var rec domain.Reading
		var ts string
		if err := rows.Scan(&ts, &rec.TurbineID, &rec.WindSpeed, &rec.WindDirection, &rec.PowerOutput); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("stored timestamp %q is unparsable: %w", ts, err)
		}
		rec.Timestamp = t
		readings = append(readings, rec)
	}

	return readings, rows.Err()
}

// Count returns the number of stored readings.
func (r *ReadingRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM turbine_readings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

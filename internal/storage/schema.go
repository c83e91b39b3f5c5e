// Package storage persists clean readings, daily summaries and anomaly
// records in SQLite, and serves the historical reads the pipeline core needs.
package storage

import (
	"database/sql"
	"fmt"
)

// Schema is the single source of truth for the turbine database layout.
// Timestamps are stored as RFC3339 TEXT and dates as YYYY-MM-DD TEXT, so
// lexicographic comparison matches chronological order.
const Schema = `
CREATE TABLE IF NOT EXISTS turbine_readings (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp      TEXT    NOT NULL,
    turbine_id     INTEGER NOT NULL,
    wind_speed     REAL    NOT NULL,
    wind_direction REAL    NOT NULL,
    power_output   REAL    NOT NULL,
    UNIQUE (timestamp, turbine_id)
);

CREATE INDEX IF NOT EXISTS idx_readings_turbine_time
    ON turbine_readings (turbine_id, timestamp);

CREATE TABLE IF NOT EXISTS daily_summary (
    turbine_id         INTEGER NOT NULL,
    date               TEXT    NOT NULL,
    min_power_output   REAL    NOT NULL,
    max_power_output   REAL    NOT NULL,
    mean_power_output  REAL    NOT NULL,
    std_power_output   REAL    NOT NULL,
    total_power_output REAL    NOT NULL,
    reading_count      INTEGER NOT NULL,
    PRIMARY KEY (turbine_id, date)
);

CREATE TABLE IF NOT EXISTS daily_anomalies (
    turbine_id             INTEGER NOT NULL,
    date                   TEXT    NOT NULL,
    total_power_output     REAL    NOT NULL,
    hist_mean_daily_output REAL,
    hist_std_daily_output  REAL,
    deviation              REAL,
    is_anomaly             INTEGER NOT NULL,
    evaluated              INTEGER NOT NULL,
    PRIMARY KEY (turbine_id, date)
);

CREATE INDEX IF NOT EXISTS idx_anomalies_date
    ON daily_anomalies (date);
`

// ApplySchema creates the tables and indexes if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply turbine schema: %w", err)
	}
	return nil
}

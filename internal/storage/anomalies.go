package storage

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
)

// AnomalyRepository provides access to stored anomaly decisions.
type AnomalyRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAnomalyRepository creates a new anomaly repository.
func NewAnomalyRepository(db *sql.DB, log zerolog.Logger) *AnomalyRepository {
	return &AnomalyRepository{
		db:  db,
		log: log.With().Str("component", "anomaly_repo").Logger(),
	}
}

// Insert stores anomaly records, skipping (turbine_id, date) pairs that
// already exist. Unevaluated records store NULL historical statistics.
func (r *AnomalyRepository) Insert(records []domain.AnomalyRecord) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.insertTx(tx, records)
	})
}

func (r *AnomalyRepository) insertTx(tx *sql.Tx, records []domain.AnomalyRecord) error {
	stmt, err := tx.Prepare(`
		INSERT INTO daily_anomalies
			(turbine_id, date, total_power_output, hist_mean_daily_output,
			 hist_std_daily_output, deviation, is_anomaly, evaluated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (turbine_id, date) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare anomaly insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var histMean, histStd, deviation interface{}
		if rec.Evaluated {
			histMean, histStd, deviation = rec.HistoricalMean, rec.HistoricalStd, rec.Deviation
		}
		_, err := stmt.Exec(
			rec.TurbineID, domain.DateString(rec.Date), rec.ActualTotal,
			histMean, histStd, deviation, rec.IsAnomaly, rec.Evaluated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert anomaly for turbine %d on %s: %w",
				rec.TurbineID, domain.DateString(rec.Date), err)
		}
	}

	return nil
}

// ByDate returns all anomaly records for one UTC date.
func (r *AnomalyRepository) ByDate(date string) ([]domain.AnomalyRecord, error) {
	rows, err := r.db.Query(selectAnomalies+" WHERE date = ? ORDER BY turbine_id ASC", date)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies for %s: %w", date, err)
	}
	defer rows.Close()
	return scanAnomalies(rows)
}

// Flagged returns the most recent records where is_anomaly is set, newest
// first.
func (r *AnomalyRepository) Flagged(limit int) ([]domain.AnomalyRecord, error) {
	rows, err := r.db.Query(selectAnomalies+" WHERE is_anomaly = 1 ORDER BY date DESC, turbine_id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged anomalies: %w", err)
	}
	defer rows.Close()
	return scanAnomalies(rows)
}

const selectAnomalies = `
	SELECT turbine_id, date, total_power_output, hist_mean_daily_output,
	       hist_std_daily_output, deviation, is_anomaly, evaluated
	FROM daily_anomalies`

func scanAnomalies(rows *sql.Rows) ([]domain.AnomalyRecord, error) {
	var records []domain.AnomalyRecord
	for rows.Next() {
		var rec domain.AnomalyRecord
		var date string
		var histMean, histStd, deviation sql.NullFloat64
		err := rows.Scan(&rec.TurbineID, &date, &rec.ActualTotal,
			&histMean, &histStd, &deviation, &rec.IsAnomaly, &rec.Evaluated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored anomaly date is unparsable: %w", err)
		}
		rec.Date = d
		rec.HistoricalMean = histMean.Float64
		rec.HistoricalStd = histStd.Float64
		rec.Deviation = deviation.Float64
		records = append(records, rec)
	}
	return records, rows.Err()
}

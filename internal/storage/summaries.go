package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
)

// SummaryRepository provides access to stored daily summaries, including the
// rolling-window history reads the anomaly detector depends on.
type SummaryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSummaryRepository creates a new summary repository.
func NewSummaryRepository(db *sql.DB, log zerolog.Logger) *SummaryRepository {
	return &SummaryRepository{
		db:  db,
		log: log.With().Str("component", "summary_repo").Logger(),
	}
}

// Insert stores daily summaries, skipping (turbine_id, date) pairs that
// already exist. Summaries are immutable once written.
func (r *SummaryRepository) Insert(summaries []domain.DailySummary) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.insertTx(tx, summaries)
	})
}

func (r *SummaryRepository) insertTx(tx *sql.Tx, summaries []domain.DailySummary) error {
	stmt, err := tx.Prepare(`
		INSERT INTO daily_summary
			(turbine_id, date, min_power_output, max_power_output, mean_power_output,
			 std_power_output, total_power_output, reading_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (turbine_id, date) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range summaries {
		_, err := stmt.Exec(
			s.TurbineID, domain.DateString(s.Date),
			s.Min, s.Max, s.Mean, s.Std, s.DailyTotal, s.Count,
		)
		if err != nil {
			return fmt.Errorf("failed to insert summary for turbine %d on %s: %w",
				s.TurbineID, domain.DateString(s.Date), err)
		}
	}

	return nil
}

// DailyTotals returns up to window prior daily totals for a turbine, strictly
// before the target date and no older than window days before it, oldest
// first. Implements the detector's history provider.
func (r *SummaryRepository) DailyTotals(turbineID int, before time.Time, window int) ([]float64, error) {
	target := domain.DateString(before)
	cutoff := domain.DateString(domain.Midnight(before).AddDate(0, 0, -window))

	rows, err := r.db.Query(`
		SELECT total_power_output
		FROM daily_summary
		WHERE turbine_id = ? AND date < ? AND date >= ?
		ORDER BY date ASC
	`, turbineID, target, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals for turbine %d: %w", turbineID, err)
	}
	defer rows.Close()

	var totals []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

// Recent returns a turbine's most recent daily summaries, newest first.
func (r *SummaryRepository) Recent(turbineID int, days int) ([]domain.DailySummary, error) {
	rows, err := r.db.Query(`
		SELECT turbine_id, date, min_power_output, max_power_output, mean_power_output,
		       std_power_output, total_power_output, reading_count
		FROM daily_summary
		WHERE turbine_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, turbineID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries for turbine %d: %w", turbineID, err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]domain.DailySummary, error) {
	var summaries []domain.DailySummary
	for rows.Next() {
		var s domain.DailySummary
		var date string
		err := rows.Scan(&s.TurbineID, &date, &s.Min, &s.Max, &s.Mean, &s.Std, &s.DailyTotal, &s.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored summary date is unparsable: %w", err)
		}
		s.Date = d
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

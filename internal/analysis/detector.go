package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// HistoryProvider supplies a turbine's prior daily totals: up to window
// values strictly before the target date, oldest first. It may return fewer
// than window near the start of a turbine's history.
type HistoryProvider interface {
	DailyTotals(turbineID int, before time.Time, window int) ([]float64, error)
}

// DetectorConfig carries the anomaly detection tunables.
type DetectorConfig struct {
	Sigma          float64 // Deviation threshold in historical standard deviations
	WindowDays     int     // Rolling window size
	MinHistoryDays int     // Minimum prior totals required to evaluate a day
}

// Detector compares each day's total output against the turbine's own rolling
// history. Each turbine is evaluated independently; the detector never looks
// ahead and never compares across turbines.
type Detector struct {
	cfg     DetectorConfig
	history HistoryProvider
	log     zerolog.Logger
}

// NewDetector creates a new anomaly detector.
func NewDetector(cfg DetectorConfig, history HistoryProvider, log zerolog.Logger) *Detector {
	// Evaluating against an empty history would compare to NaN statistics
	if cfg.MinHistoryDays < 1 {
		cfg.MinHistoryDays = 1
	}
	return &Detector{
		cfg:     cfg,
		history: history,
		log:     log.With().Str("component", "detector").Logger(),
	}
}

// Evaluate produces one AnomalyRecord per daily summary. Days with fewer than
// MinHistoryDays prior totals are emitted unevaluated; that is a normal
// outcome for early history, not an error.
func (d *Detector) Evaluate(summaries []domain.DailySummary) ([]domain.AnomalyRecord, error) {
	records := make([]domain.AnomalyRecord, 0, len(summaries))
	anomalies := 0

	for _, s := range summaries {
		totals, err := d.history.DailyTotals(s.TurbineID, s.Date, d.cfg.WindowDays)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for turbine %d before %s: %w",
				s.TurbineID, domain.DateString(s.Date), err)
		}

		rec := d.evaluateDay(s, totals)
		if rec.IsAnomaly {
			anomalies++
			d.log.Warn().Int("turbine_id", rec.TurbineID).Str("date", domain.DateString(rec.Date)).
				Float64("total", rec.ActualTotal).Float64("hist_mean", rec.HistoricalMean).
				Float64("hist_std", rec.HistoricalStd).Msg("Anomalous daily output")
		}
		records = append(records, rec)
	}

	d.log.Info().Int("evaluated", len(records)).Int("anomalies", anomalies).Msg("Anomaly detection complete")
	return records, nil
}

// evaluateDay is the pure decision function for one (turbine, date) total.
func (d *Detector) evaluateDay(s domain.DailySummary, totals []float64) domain.AnomalyRecord {
	rec := domain.AnomalyRecord{
		TurbineID:   s.TurbineID,
		Date:        s.Date,
		ActualTotal: s.DailyTotal,
	}

	if len(totals) < d.cfg.MinHistoryDays {
		// Not yet comparable
		return rec
	}

	rec.Evaluated = true
	rec.HistoricalMean = stat.Mean(totals, nil)
	if len(totals) > 1 {
		rec.HistoricalStd = stat.StdDev(totals, nil)
	}
	rec.Deviation = s.DailyTotal - rec.HistoricalMean

	if rec.HistoricalStd == 0 {
		// Constant history: any departure from it is anomalous
		rec.IsAnomaly = rec.Deviation != 0
		return rec
	}

	rec.IsAnomaly = math.Abs(rec.Deviation) > d.cfg.Sigma*rec.HistoricalStd
	return rec
}

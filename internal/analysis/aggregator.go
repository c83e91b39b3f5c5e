// Package analysis computes per-turbine daily statistics and flags days whose
// total output deviates abnormally from recent history.
package analysis

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// Aggregator computes daily power output statistics per turbine. It is a pure
// function of its input; days with no clean readings produce no record.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a new daily aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "aggregator").Logger(),
	}
}

// Summarize computes mean/min/max/std and the daily total of power output for
// every (turbine, date) present in the clean sets. Std is the sample standard
// deviation; a single-reading day yields std 0 by convention. Output is
// ordered by turbine id, then date.
func (a *Aggregator) Summarize(sets []domain.CleanReadingSet) []domain.DailySummary {
	var summaries []domain.DailySummary

	for _, set := range sets {
		byDay := make(map[string][]float64)
		for _, r := range set.Readings {
			key := domain.DateString(r.Timestamp)
			byDay[key] = append(byDay[key], r.PowerOutput)
		}

		days := make([]string, 0, len(byDay))
		for day := range byDay {
			days = append(days, day)
		}
		sort.Strings(days)

		for _, day := range days {
			values := byDay[day]
			date, _ := domain.ParseDate(day)
			summaries = append(summaries, summarizeDay(set.TurbineID, date, values))
		}
	}

	a.log.Info().Int("summaries", len(summaries)).Msg("Daily summaries computed")
	return summaries
}

func summarizeDay(turbineID int, date time.Time, values []float64) domain.DailySummary {
	min, max := values[0], values[0]
	total := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		total += v
	}

	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}

	return domain.DailySummary{
		TurbineID:  turbineID,
		Date:       date,
		Mean:       stat.Mean(values, nil),
		Min:        min,
		Max:        max,
		Std:        std,
		DailyTotal: total,
		Count:      len(values),
	}
}

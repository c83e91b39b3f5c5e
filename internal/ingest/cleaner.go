package ingest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// FieldStatsProvider supplies a turbine's clean history statistics for one
// sensor field. The cleaner uses it for the statistical outlier bounds; when
// no history exists (n == 0) it falls back to the current batch.
type FieldStatsProvider interface {
	FieldStats(turbineID int, field domain.SensorField) (mean, std float64, n int, err error)
}

// CleanerConfig carries the cleaning tunables.
type CleanerConfig struct {
	ForwardFillLimit int // Max consecutive missing/invalid values recovered by forward-fill
	OutlierSigma     float64
	Limits           map[domain.SensorField]domain.SensorLimit
	Workers          int // Parallel per-turbine workers; <=1 means sequential
}

// Cleaner converts a validated raw batch into one clean reading set per
// turbine. Two ordered sub-stages per turbine, in timestamp order: missing
// value resolution (bounded forward-fill), then outlier resolution (physical
// bounds, then statistical bounds), each re-entering the same bounded fill.
type Cleaner struct {
	cfg     CleanerConfig
	history FieldStatsProvider // nil means batch-only statistics
	log     zerolog.Logger
}

// NewCleaner creates a cleaner. history may be nil.
func NewCleaner(cfg CleanerConfig, history FieldStatsProvider, log zerolog.Logger) *Cleaner {
	if cfg.Limits == nil {
		cfg.Limits = domain.DefaultSensorLimits()
	}
	return &Cleaner{
		cfg:     cfg,
		history: history,
		log:     log.With().Str("component", "cleaner").Logger(),
	}
}

// Clean runs the full cleaning policy and returns one CleanReadingSet per
// turbine, ordered by turbine id. Row-level data quality problems are
// absorbed here (substituted or dropped), never surfaced as errors.
func (c *Cleaner) Clean(batch *domain.Batch) []domain.CleanReadingSet {
	turbines, rowsIn := c.partition(batch)

	ids := make([]int, 0, len(turbines))
	for id := range turbines {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	sets := make([]domain.CleanReadingSet, len(ids))
	workers := c.cfg.Workers
	if workers <= 1 || len(ids) <= 1 {
		for i, id := range ids {
			sets[i] = c.cleanTurbine(id, turbines[id])
		}
	} else {
		// Turbines are data-independent; clean them in parallel, results
		// keyed by index so output order stays deterministic.
		if workers > len(ids) {
			workers = len(ids)
		}
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					sets[i] = c.cleanTurbine(ids[i], turbines[ids[i]])
				}
			}()
		}
		for i := range ids {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	kept := 0
	for _, s := range sets {
		kept += len(s.Readings)
	}
	c.log.Info().Int("rows_in", rowsIn).Int("rows_kept", kept).Int("turbines", len(ids)).Msg("Batch cleaned")

	return sets
}

// partition drops rows without a timestamp or turbine id, removes duplicate
// (timestamp, turbine_id) rows (first occurrence wins) and groups the rest by
// turbine in timestamp order.
func (c *Cleaner) partition(batch *domain.Batch) (map[int][]domain.RawReading, int) {
	turbines := make(map[int][]domain.RawReading)
	seen := make(map[string]bool)
	dropped, dupes := 0, 0

	for _, row := range batch.Rows {
		if !row.HasTimestamp || !row.HasTurbineID {
			dropped++
			continue
		}
		key := fmt.Sprintf("%d|%d", row.TurbineID, row.Timestamp.UnixNano())
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
		turbines[row.TurbineID] = append(turbines[row.TurbineID], row)
	}

	for id := range turbines {
		rows := turbines[id]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})
	}

	if dropped > 0 || dupes > 0 {
		c.log.Info().Int("missing_key_rows", dropped).Int("duplicate_rows", dupes).Msg("Dropped unprocessable rows")
	}

	return turbines, len(batch.Rows)
}

// cleanTurbine applies the per-field cleaning stages over one turbine's
// time-ordered rows and materializes the rows where every sensor survived.
func (c *Cleaner) cleanTurbine(turbineID int, rows []domain.RawReading) domain.CleanReadingSet {
	for _, field := range domain.SensorFields {
		seq := make([]domain.FieldValue, len(rows))
		for i := range rows {
			seq[i] = rows[i].Sensor(field)
		}

		// Missing-value resolution
		forwardFill(seq, c.cfg.ForwardFillLimit)

		// Physical bounds; rejected values re-enter the same bounded fill
		if limit, ok := c.cfg.Limits[field]; ok {
			flagged := 0
			for i := range seq {
				if seq[i].IsPresent() && !limit.Contains(seq[i].Value) {
					seq[i] = domain.Invalid("physical bound")
					flagged++
				}
			}
			if flagged > 0 {
				c.log.Debug().Int("turbine_id", turbineID).Str("field", string(field)).
					Int("values", flagged).Msg("Values outside physical bounds")
				forwardFill(seq, c.cfg.ForwardFillLimit)
			}
		}

		// Statistical bounds, same substitution path
		if c.flagStatisticalOutliers(turbineID, field, seq) > 0 {
			forwardFill(seq, c.cfg.ForwardFillLimit)
		}

		for i := range rows {
			rows[i].SetSensor(field, seq[i])
		}
	}

	set := domain.CleanReadingSet{TurbineID: turbineID}
	for _, row := range rows {
		if !row.WindSpeed.IsPresent() || !row.WindDirection.IsPresent() || !row.PowerOutput.IsPresent() {
			continue
		}
		set.Readings = append(set.Readings, domain.Reading{
			Timestamp:     row.Timestamp,
			TurbineID:     row.TurbineID,
			WindSpeed:     row.WindSpeed.Value,
			WindDirection: row.WindDirection.Value,
			PowerOutput:   row.PowerOutput.Value,
		})
	}
	return set
}

// flagStatisticalOutliers marks values outside mean +/- sigma*std as invalid
// and returns how many it flagged. Bounds come from the turbine's stored
// clean history when available, otherwise from the current batch. A zero or
// undefined std (constant or near-empty history) skips the check entirely.
func (c *Cleaner) flagStatisticalOutliers(turbineID int, field domain.SensorField, seq []domain.FieldValue) int {
	mean, std, n := c.fieldStats(turbineID, field, seq)
	if n < 2 || std == 0 {
		return 0
	}

	bound := c.cfg.OutlierSigma * std
	flagged := 0
	for i := range seq {
		if !seq[i].IsPresent() {
			continue
		}
		dev := seq[i].Value - mean
		if dev > bound || dev < -bound {
			seq[i] = domain.Invalid("statistical outlier")
			flagged++
		}
	}

	if flagged > 0 {
		c.log.Debug().Int("turbine_id", turbineID).Str("field", string(field)).
			Int("values", flagged).Float64("mean", mean).Float64("std", std).Msg("Statistical outliers flagged")
	}
	return flagged
}

// fieldStats picks the statistics source: stored history first, current batch
// as fallback. History read failures degrade to batch statistics; a cleaning
// run never aborts on a history lookup.
func (c *Cleaner) fieldStats(turbineID int, field domain.SensorField, seq []domain.FieldValue) (mean, std float64, n int) {
	if c.history != nil {
		m, s, count, err := c.history.FieldStats(turbineID, field)
		if err != nil {
			c.log.Warn().Err(err).Int("turbine_id", turbineID).Str("field", string(field)).
				Msg("History stats unavailable, using batch statistics")
		} else if count >= 2 {
			return m, s, count
		}
	}

	values := make([]float64, 0, len(seq))
	for _, v := range seq {
		if v.IsPresent() {
			values = append(values, v.Value)
		}
	}
	if len(values) < 2 {
		return 0, 0, len(values)
	}
	return stat.Mean(values, nil), stat.StdDev(values, nil), len(values)
}

// forwardFill resolves runs of consecutive missing/invalid values in place.
// A run is recovered from the most recent preceding present value only when
// the whole run is no longer than limit; longer runs stay unresolved so that
// genuine extended outages are dropped rather than smoothed over.
func forwardFill(seq []domain.FieldValue, limit int) {
	var last domain.FieldValue
	haveLast := false

	i := 0
	for i < len(seq) {
		if seq[i].IsPresent() {
			last = seq[i]
			haveLast = true
			i++
			continue
		}
		j := i
		for j < len(seq) && !seq[j].IsPresent() {
			j++
		}
		if haveLast && j-i <= limit {
			for k := i; k < j; k++ {
				seq[k] = domain.Present(last.Value)
			}
		}
		i = j
	}
}

// Package pipeline sequences the batch processing stages: validation,
// cleaning, aggregation, anomaly detection and the hand-off to persistence.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/analysis"
	"github.com/windfleet/turbinewatch/internal/config"
	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/ingest"
)

// Stage is the pipeline's processing state. Transitions are strictly linear;
// any stage failure moves directly to StageFailed and nothing downstream runs.
type Stage string

const (
	StageValidating  Stage = "validating"
	StageCleaning    Stage = "cleaning"
	StageAggregating Stage = "aggregating"
	StageDetecting   Stage = "detecting"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Sink receives the three output record streams of a successful run in a
// single call, so an implementation can commit them atomically. A failed run
// never reaches the sink.
type Sink interface {
	Save(readings []domain.Reading, summaries []domain.DailySummary, anomalies []domain.AnomalyRecord) error
}

// Result captures one pipeline run. Err is set only when Stage is
// StageFailed, and carries the originating stage error.
type Result struct {
	RunID     string
	Stage     Stage
	Err       error
	RowsIn    int
	RowsKept  int
	CleanSets []domain.CleanReadingSet
	Summaries []domain.DailySummary
	Anomalies []domain.AnomalyRecord
}

// Pipeline wires the processing components together. Components are stateless
// between runs; re-running a batch against an unchanged history is idempotent.
type Pipeline struct {
	cfg        config.PipelineConfig
	validator  *ingest.Validator
	cleaner    *ingest.Cleaner
	aggregator *analysis.Aggregator
	detector   *analysis.Detector
	sink       Sink
	log        zerolog.Logger
}

// New builds a pipeline from the configured tunables and the two injected
// storage capabilities (field history stats for the cleaner, daily totals for
// the detector).
func New(
	cfg config.PipelineConfig,
	fieldStats ingest.FieldStatsProvider,
	history analysis.HistoryProvider,
	sink Sink,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		validator: ingest.NewValidator(log),
		cleaner: ingest.NewCleaner(ingest.CleanerConfig{
			ForwardFillLimit: cfg.ForwardFillLimit,
			OutlierSigma:     cfg.OutlierSigma,
			Workers:          cfg.Workers,
		}, fieldStats, log),
		aggregator: analysis.NewAggregator(log),
		detector: analysis.NewDetector(analysis.DetectorConfig{
			Sigma:          cfg.AnomalySigma,
			WindowDays:     cfg.WindowDays,
			MinHistoryDays: cfg.MinHistoryDays,
		}, history, log),
		sink: sink,
		log:  log.With().Str("component", "pipeline").Logger(),
	}
}

// Run processes one batch for one turbine group. On failure the returned
// Result carries the failed stage and error, and nothing has been persisted.
func (p *Pipeline) Run(batch *domain.Batch, group domain.TurbineGroup) (*Result, error) {
	res := &Result{
		RunID:  uuid.NewString(),
		RowsIn: len(batch.Rows),
	}
	log := p.log.With().Str("run_id", res.RunID).Int("group", group.ID).Logger()
	log.Info().Int("rows", res.RowsIn).Msg("Pipeline run started")

	res.Stage = StageValidating
	if err := p.validator.Validate(batch, group); err != nil {
		return p.fail(res, log, fmt.Errorf("validation failed: %w", err))
	}

	res.Stage = StageCleaning
	res.CleanSets = p.cleaner.Clean(batch)
	for _, set := range res.CleanSets {
		res.RowsKept += len(set.Readings)
	}

	res.Stage = StageAggregating
	res.Summaries = p.aggregator.Summarize(res.CleanSets)

	res.Stage = StageDetecting
	anomalies, err := p.detector.Evaluate(res.Summaries)
	if err != nil {
		return p.fail(res, log, fmt.Errorf("anomaly detection failed: %w", err))
	}
	res.Anomalies = anomalies

	if p.sink != nil {
		if err := p.sink.Save(flatten(res.CleanSets), res.Summaries, res.Anomalies); err != nil {
			return p.fail(res, log, fmt.Errorf("failed to persist results: %w", err))
		}
	}

	res.Stage = StageDone
	log.Info().Int("rows_kept", res.RowsKept).Int("summaries", len(res.Summaries)).
		Int("anomalies", countAnomalies(res.Anomalies)).Msg("Pipeline run complete")
	return res, nil
}

func (p *Pipeline) fail(res *Result, log zerolog.Logger, err error) (*Result, error) {
	log.Error().Err(err).Str("stage", string(res.Stage)).Msg("Pipeline run failed")
	res.Err = err
	res.Stage = StageFailed
	return res, err
}

func flatten(sets []domain.CleanReadingSet) []domain.Reading {
	var out []domain.Reading
	for _, set := range sets {
		out = append(out, set.Readings...)
	}
	return out
}

func countAnomalies(records []domain.AnomalyRecord) int {
	n := 0
	for _, r := range records {
		if r.IsAnomaly {
			n++
		}
	}
	return n
}

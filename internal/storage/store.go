package storage

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
)

// Store bundles the three repositories and commits a pipeline run's output in
// one transaction, so a failed run never leaves partial daily state behind.
type Store struct {
	db             *database.DB
	Readings       *ReadingRepository
	Summaries      *SummaryRepository
	Anomalies      *AnomalyRepository
	updateExisting bool
	log            zerolog.Logger
}

// NewStore creates a store over an initialized database.
func NewStore(db *database.DB, updateExisting bool, log zerolog.Logger) *Store {
	return &Store{
		db:             db,
		Readings:       NewReadingRepository(db.Conn(), log),
		Summaries:      NewSummaryRepository(db.Conn(), log),
		Anomalies:      NewAnomalyRepository(db.Conn(), log),
		updateExisting: updateExisting,
		log:            log.With().Str("component", "store").Logger(),
	}
}

// Save implements the pipeline sink: readings, summaries and anomalies are
// written atomically.
func (s *Store) Save(readings []domain.Reading, summaries []domain.DailySummary, anomalies []domain.AnomalyRecord) error {
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		if err := s.Readings.upsertTx(tx, readings, s.updateExisting); err != nil {
			return err
		}
		if err := s.Summaries.insertTx(tx, summaries); err != nil {
			return err
		}
		return s.Anomalies.insertTx(tx, anomalies)
	})
}

// Package main is the batch ingest CLI. It processes either a single CSV
// drop or a whole per-group folder of date-named drops, in date order.
package main

import (
	"flag"
	"path/filepath"
	"time"

	"github.com/windfleet/turbinewatch/internal/config"
	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/ingest"
	"github.com/windfleet/turbinewatch/internal/pipeline"
	"github.com/windfleet/turbinewatch/internal/storage"
	"github.com/windfleet/turbinewatch/pkg/logger"
)

func main() {
	var (
		file    = flag.String("file", "", "Path to a single CSV drop to process")
		folder  = flag.String("folder", "", "Path to a data_group_N folder of date-named CSV drops")
		groupID = flag.Int("group", 0, "Turbine group id (with -file; inferred from the name when omitted)")
		date    = flag.String("date", "", "Target date YYYY-MM-DD (with -file; inferred from the name when omitted)")
		window  = flag.Int("window", 0, "Override the rolling anomaly window in days")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *window > 0 {
		cfg.Pipeline.WindowDays = *window
		if cfg.Pipeline.MinHistoryDays > *window {
			cfg.Pipeline.MinHistoryDays = *window
		}
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	if (*file == "") == (*folder == "") {
		log.Fatal().Msg("Exactly one of -file or -folder is required")
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "turbine.db"),
		Profile: database.ProfileArchive,
		Name:    "turbine",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := storage.ApplySchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	store := storage.NewStore(db, cfg.Pipeline.UpdateExisting, log)
	pipe := pipeline.New(cfg.Pipeline, store.Readings, store.Summaries, store, log)
	runner := pipeline.NewRunner(pipe, log)

	if *folder != "" {
		if err := runner.RunFolder(*folder); err != nil {
			log.Fatal().Err(err).Msg("Backfill failed")
		}
		log.Info().Msg("Backfill complete")
		return
	}

	group, err := resolveGroup(*file, *groupID)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not resolve turbine group")
	}

	var targetDate time.Time
	if *date != "" {
		targetDate, err = domain.ParseDate(*date)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid target date")
		}
	} else if d, err := ingest.DateFromFilename(*file); err == nil {
		targetDate = d
	}

	result, err := runner.RunFile(*file, group, targetDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingest run failed")
	}

	log.Info().Str("run_id", result.RunID).Int("rows_in", result.RowsIn).
		Int("rows_kept", result.RowsKept).Int("summaries", len(result.Summaries)).
		Msg("Ingest run complete")
}

// resolveGroup takes the explicit -group flag when given, otherwise parses
// data_group_N out of the file path.
func resolveGroup(file string, groupID int) (domain.TurbineGroup, error) {
	if groupID > 0 {
		return domain.GroupByID(groupID)
	}
	return domain.GroupFromName(file)
}

// Package main is the entry point for the turbinewatch service. It ingests
// daily turbine sensor drops on a schedule, persists clean readings and daily
// statistics, and serves the results over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/windfleet/turbinewatch/internal/config"
	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/pipeline"
	"github.com/windfleet/turbinewatch/internal/scheduler"
	"github.com/windfleet/turbinewatch/internal/server"
	"github.com/windfleet/turbinewatch/internal/storage"
	"github.com/windfleet/turbinewatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting turbinewatch")

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

	sched := scheduler.New(log)
	if err := sched.Add(cfg.IngestSchedule, scheduler.NewIngestJob(cfg.DropDir, runner, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule ingest job")
	}
	if err := sched.Add(cfg.MaintenanceSchedule, scheduler.NewMaintenanceJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		DB:      db,
		Store:   store,
		Runner:  runner,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("turbinewatch stopped")
}

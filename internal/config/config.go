// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the database (always absolute)
	DropDir        string // Directory watched for incoming per-group CSV folders
	LogLevel       string
	Port           int
	DevMode        bool
	IngestSchedule      string // Cron expression for the scheduled ingest job
	MaintenanceSchedule string // Cron expression for database maintenance
	Pipeline            PipelineConfig
}

// PipelineConfig carries the tunables consumed by the cleaning and anomaly
// detection stages. It is passed into each component explicitly so the core
// stays free of process-wide state.
type PipelineConfig struct {
	ForwardFillLimit int     // Max consecutive missing values recovered by forward-fill
	OutlierSigma     float64 // z-score threshold for the statistical outlier pass
	AnomalySigma     float64 // z-score threshold for daily-total anomaly flagging
	WindowDays       int     // Rolling historical window size in days
	MinHistoryDays   int     // Minimum prior daily totals required to evaluate a day
	Workers          int     // Parallel per-turbine cleaning workers (0 = sequential)
	UpdateExisting   bool    // Overwrite stored readings on (timestamp, turbine_id) conflict
}

// DefaultPipeline returns the pipeline tunables with their documented defaults.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		ForwardFillLimit: 2,
		OutlierSigma:     3.0,
		AnomalySigma:     2.0,
		WindowDays:       7,
		MinHistoryDays:   7,
		Workers:          4,
		UpdateExisting:   false,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TURBINE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		DropDir:             getEnv("TURBINE_DROP_DIR", filepath.Join(absDataDir, "incoming")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("PORT", 8080),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		IngestSchedule:      getEnv("INGEST_SCHEDULE", "30 0 * * *"),     // 00:30, after the daily drop
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 3 * * *"), // quiet hours, after ingest
		Pipeline: PipelineConfig{
			ForwardFillLimit: getEnvAsInt("FORWARD_FILL_LIMIT", 2),
			OutlierSigma:     getEnvAsFloat("OUTLIER_SIGMA", 3.0),
			AnomalySigma:     getEnvAsFloat("ANOMALY_SIGMA", 2.0),
			WindowDays:       getEnvAsInt("ANOMALY_WINDOW_DAYS", 7),
			MinHistoryDays:   getEnvAsInt("ANOMALY_MIN_HISTORY_DAYS", 7),
			Workers:          getEnvAsInt("PIPELINE_WORKERS", 4),
			UpdateExisting:   getEnvAsBool("UPDATE_EXISTING_READINGS", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Pipeline.ForwardFillLimit < 0 {
		return fmt.Errorf("forward-fill limit must be >= 0, got %d", c.Pipeline.ForwardFillLimit)
	}
	if c.Pipeline.OutlierSigma <= 0 {
		return fmt.Errorf("outlier sigma threshold must be > 0, got %v", c.Pipeline.OutlierSigma)
	}
	if c.Pipeline.AnomalySigma <= 0 {
		return fmt.Errorf("anomaly sigma threshold must be > 0, got %v", c.Pipeline.AnomalySigma)
	}
	if c.Pipeline.WindowDays <= 0 {
		return fmt.Errorf("anomaly window must be > 0 days, got %d", c.Pipeline.WindowDays)
	}
	if c.Pipeline.MinHistoryDays < 1 {
		return fmt.Errorf("minimum history must be >= 1 day, got %d", c.Pipeline.MinHistoryDays)
	}
	if c.Pipeline.MinHistoryDays > c.Pipeline.WindowDays {
		return fmt.Errorf("minimum history (%d) cannot exceed window size (%d)",
			c.Pipeline.MinHistoryDays, c.Pipeline.WindowDays)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Package logger builds the zerolog loggers used across turbinewatch.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string    // zerolog level name: debug, info, warn, error, ...
	Pretty bool      // Console output instead of JSON
	Writer io.Writer // Destination; nil means stdout
}

// New creates the process logger. Every event carries the service name so
// drop-box hosts running more than one collector stay distinguishable in
// aggregated logs. An unknown level name falls back to info and is reported
// on the logger itself.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Writer
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	l := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "turbinewatch").
		Logger()

	if err != nil {
		l.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
	}

	return l
}

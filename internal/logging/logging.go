// Package logging builds the zerolog loggers used across the service.
// Components receive a logger by value through their Options structs, so
// this package only knows how to construct one from configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction. The zero value produces an
// info-level JSON logger on stderr.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, error, fatal.
	Level string
	// Format selects the output encoding: "json" or "console".
	Format string
	// Output overrides the destination. Defaults to os.Stderr.
	Output io.Writer
}

// New constructs a logger from cfg.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

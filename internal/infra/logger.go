package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger from config and installs it as the
// zerolog global. Console output in dev, JSON otherwise.
func NewLogger(cfg *Config) zerolog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	w := out
	if cfg.Logging.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Logger()
	log.Logger = logger
	return logger
}

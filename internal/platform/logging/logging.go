// Package logging builds the logrus logger shared by the CLI and the relay.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config selects level, output format and destination.
type Config struct {
	Level  string
	Format string // "text" or "json"
	Out    io.Writer
}

// New returns a logger with redaction installed.
func New(cfg Config) (*log.Logger, error) {
	logger := log.New()
	logger.AddHook(NewRedactHook())

	if cfg.Out != nil {
		logger.SetOutput(cfg.Out)
	} else {
		logger.SetOutput(os.Stderr)
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("log format %q: want text or json", cfg.Format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and defaults.
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/pterm/pterm"

	"github.com/luca-patrignani/scoreledger/config"
)

const (
	// logRotateKB is the size at which the log file is rolled.
	logRotateKB = 10 * 1024
	// logMaxRolls is the number of rolled log files kept.
	logMaxRolls = 3
)

// newLogger returns the process logger. By default records go to the
// terminal through pterm. With a log file configured they are written as
// text to a rotated file instead. The returned function flushes and closes
// the file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		plogger := pterm.DefaultLogger.WithLevel(ptermLevel(cfg.Level()))
		return slog.New(pterm.NewSlogHandler(plogger)), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	r, err := rotator.New(cfg.LogFile, logRotateKB, false, logMaxRolls)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewTextHandler(r, &slog.HandlerOptions{Level: cfg.Level()})
	return slog.New(handler), func() { r.Close() }, nil
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	}
	return pterm.LogLevelError
}

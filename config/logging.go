package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// maxLogSize triggers rotation of an existing log file at startup
const maxLogSize = 10 * 1024 * 1024

// SetupLogging returns the process logger described by the log section
// Without debug every record is discarded and the file is nil. With debug,
// records go to <dir>/<name>.log at debug level, never to stdout or stderr,
// and an oversized previous file is renamed with a timestamp first
func SetupLogging(cfg LogConfig, name string) (*slog.Logger, *os.File, error) {
	if !cfg.Debug {
		logger := slog.New(slog.DiscardHandler)
		slog.SetDefault(logger)
		return logger, nil, nil
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, name+".log")
	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		rotated := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("20060102_150405")))
		if err := os.Rename(path, rotated); err != nil {
			return nil, nil, fmt.Errorf("rotating log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
	return logger.With("app", name), f, nil
}

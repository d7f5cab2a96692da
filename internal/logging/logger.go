// Package logging configures the process-wide logrus logger and hands out
// per-component entries.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/actionsum/wsbridge/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	base     = logrus.New()
	baseMu   sync.Mutex
	logFile  *os.File
	loggers  = make(map[string]*logrus.Entry)
	loggerMu sync.Mutex
)

// Configure applies level, format and file sink to the shared logger.
// It may be called again, for example after the config is reloaded.
func Configure(cfg config.LogConfig) error {
	baseMu.Lock()
	defer baseMu.Unlock()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch cfg.Format {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}

	writers := []io.Writer{os.Stderr}
	if cfg.File != "" {
		path := expandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.Wrapf(err, "failed to create log directory for %s", path)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrapf(err, "failed to open log file %s", path)
		}
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile = file
		writers = append(writers, file)
	}

	if len(writers) == 1 {
		base.SetOutput(writers[0])
	} else {
		base.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// SetOutput redirects the shared logger, replacing stderr and any file sink
func SetOutput(w io.Writer) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base.SetOutput(w)
}

// NewLogger returns the entry for a component, creating it on first use
func NewLogger(component string) *logrus.Entry {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Base returns the shared logger
func Base() *logrus.Logger {
	return base
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

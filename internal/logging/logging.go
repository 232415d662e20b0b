// Package logging wraps charmbracelet/log with the conventions used across
// refsync: warnings and errors go to stderr, debug output is opt-in through
// REFSYNC_DEBUG, and tests get a buffer-backed logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// DebugEnv enables debug logging with caller information when set.
const DebugEnv = "REFSYNC_DEBUG"

type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetDefault returns the default logger instance (singleton-like for convenience)
func GetDefault() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger()
	})
	return defaultLogger
}

// Package-level convenience functions for quick logging
func Info(msg string, keyvals ...interface{}) {
	GetDefault().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	GetDefault().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	GetDefault().Error(msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	GetDefault().Debug(msg, keyvals...)
}

// NewAppLogger creates the process logger writing to stderr.
func NewAppLogger() *AppLogger {
	return NewAppLoggerTo(os.Stderr)
}

// NewAppLoggerTo creates a logger writing to w. Without REFSYNC_DEBUG only
// warnings and errors are shown, which keeps the diagnostic stream limited to
// the messages a user has to act on.
func NewAppLoggerTo(w io.Writer) *AppLogger {
	debug := os.Getenv(DebugEnv) != ""

	var logger *log.Logger
	if debug {
		logger = log.NewWithOptions(w, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "refsync",
		})
		logger.SetLevel(log.DebugLevel)
		logger.Debug("Debug logging enabled")
	} else {
		logger = log.NewWithOptions(w, log.Options{
			ReportTimestamp: false,
			Prefix:          "refsync",
		})
		logger.SetLevel(log.WarnLevel)
	}

	return &AppLogger{
		logger: logger,
		debug:  debug,
	}
}

// SetLevel changes the minimum level ("debug", "info", "warn", "error").
func (al *AppLogger) SetLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	al.logger.SetLevel(lvl)
	al.debug = lvl <= log.DebugLevel
	return nil
}

// With returns a logger that adds keyvals to every entry.
func (al *AppLogger) With(keyvals ...interface{}) *AppLogger {
	return &AppLogger{
		logger: al.logger.With(keyvals...),
		debug:  al.debug,
	}
}

func (al *AppLogger) Info(msg string, keyvals ...interface{}) {
	al.logger.Info(msg, keyvals...)
}

func (al *AppLogger) Warn(msg string, keyvals ...interface{}) {
	al.logger.Warn(msg, keyvals...)
}

func (al *AppLogger) Error(msg string, keyvals ...interface{}) {
	al.logger.Error(msg, keyvals...)
}

func (al *AppLogger) Debug(msg string, keyvals ...interface{}) {
	if al.debug {
		al.logger.Debug(msg, keyvals...)
	}
}

// LogMessage logs a bubbletea message received by the progress view (debug only).
func (al *AppLogger) LogMessage(msg tea.Msg) {
	if !al.debug {
		return
	}

	al.logger.Debug("Message received",
		"type", fmt.Sprintf("%T", msg),
		"content", fmt.Sprintf("%+v", msg),
	)
}

// LogPerformance logs how long operation took since start (debug only).
func (al *AppLogger) LogPerformance(operation string, start time.Time) {
	if al.debug {
		al.logger.Debug("Performance",
			"operation", operation,
			"duration", time.Since(start),
		)
	}
}

// Testing Helper - NewTestLogger creates a logger that writes to a buffer for testing
func NewTestLogger() (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false,
		ReportCaller:    false,
		Prefix:          "Test",
	})
	logger.SetLevel(log.DebugLevel)

	return &AppLogger{
		logger: logger,
		debug:  true,
	}, &buf
}

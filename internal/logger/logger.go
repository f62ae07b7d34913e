// Package logger provides the process-wide structured logger.
//
// Components derive their own entry with WithField("component", "<name>") and log through
// it, so every line can be filtered by the component that produced it.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is an alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

// Logger is the entry type handed to components.
type Logger = logrus.Entry

// Log is the root logger.
var Log = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

// WithField returns an entry carrying a single field.
func WithField(key string, value interface{}) *Logger {
	return Log.WithField(key, value)
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields Fields) *Logger {
	return Log.WithFields(fields)
}

// SetLevel parses and applies a level name (trace, debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	Log.SetLevel(lvl)
	return nil
}

// SetFormat switches between "text" and "json" output.
func SetFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

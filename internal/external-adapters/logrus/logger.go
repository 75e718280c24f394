// Package logrus adapts github.com/sirupsen/logrus to the domain Logger port.
package logrus

import (
	"fmt"
	"io"
	"strings"

	sirupsen "github.com/sirupsen/logrus"

	"github.com/ochairo/ripbench/internal/domain/interfaces"
)

// Logger implements interfaces.Logger on a logrus entry
type Logger struct {
	entry *sirupsen.Entry
}

var _ interfaces.Logger = (*Logger)(nil)

// New creates a logger writing to out. level is one of debug, info, warn,
// error; format is "text" or "json".
func New(out io.Writer, level, format string) (*Logger, error) {
	l := sirupsen.New()
	l.SetOutput(out)

	lvl, err := sirupsen.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&sirupsen.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&sirupsen.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return &Logger{entry: sirupsen.NewEntry(l)}, nil
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.with(fields).Debug(msg)
}

// Info logs at info level
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.with(fields).Info(msg)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.with(fields).Warn(msg)
}

// Error logs at error level
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.with(fields).Error(msg)
}

// With returns a logger carrying fields on every entry
func (l *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{entry: l.with(fields)}
}

func (l *Logger) with(fields []interfaces.Field) *sirupsen.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	lf := make(sirupsen.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			lf[f.Key] = err.Error()
			continue
		}
		lf[f.Key] = f.Value
	}
	return l.entry.WithFields(lf)
}

// Package interfaces defines core domain contracts.
//
//nolint:revive // Package name 'interfaces' is intentional for domain layer
package interfaces

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs debug-level messages
	Debug(msg string, fields ...Field)

	// Info logs informational messages
	Info(msg string, fields ...Field)

	// Warn logs warning messages
	Warn(msg string, fields ...Field)

	// Error logs error messages
	Error(msg string, fields ...Field)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field (convenience function)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NoOpLogger is a logger that does nothing (useful for tests)
type NoOpLogger struct{}

// Debug does nothing (no-op implementation)
func (n *NoOpLogger) Debug(_ string, _ ...Field) {}

// Info does nothing (no-op implementation)
func (n *NoOpLogger) Info(_ string, _ ...Field) {}

// Warn does nothing (no-op implementation)
func (n *NoOpLogger) Warn(_ string, _ ...Field) {}

// Error does nothing (no-op implementation)
func (n *NoOpLogger) Error(_ string, _ ...Field) {}

// Level is a minimum-severity threshold for TextLogger.
type Level int

// Log levels, lowest to highest severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// TextLogger writes leveled key=value lines to a writer. Log output goes
// to stderr so stdout stays free for machine-readable reports.
type TextLogger struct {
	mu  sync.Mutex
	w   io.Writer
	min Level
}

// NewTextLogger creates a TextLogger writing to w at the given minimum level.
func NewTextLogger(w io.Writer, min Level) *TextLogger {
	return &TextLogger{w: w, min: min}
}

// NewStderrLogger creates a TextLogger writing to stderr.
func NewStderrLogger(min Level) *TextLogger {
	return NewTextLogger(os.Stderr, min)
}

// Debug logs debug-level messages
func (l *TextLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, "DEBUG", msg, fields) }

// Info logs informational messages
func (l *TextLogger) Info(msg string, fields ...Field) { l.log(LevelInfo, "INFO", msg, fields) }

// Warn logs warning messages
func (l *TextLogger) Warn(msg string, fields ...Field) { l.log(LevelWarn, "WARN", msg, fields) }

// Error logs error messages
func (l *TextLogger) Error(msg string, fields ...Field) { l.log(LevelError, "ERROR", msg, fields) }

func (l *TextLogger) log(level Level, tag, msg string, fields []Field) {
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s: %s", tag, msg)
	for _, f := range fields {
		fmt.Fprintf(l.w, " %s=%v", f.Key, f.Value)
	}
	fmt.Fprintln(l.w)
}

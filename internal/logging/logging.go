// Package logging provides leveled, structured logging in JSON or
// human-readable form.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Level represents the severity of a log message.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levelPriority = map[Level]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// Format selects the log output format.
type Format string

const (
	// JSONFormat emits one JSON object per line.
	JSONFormat Format = "json"
	// HumanFormat emits timestamped plain text.
	HumanFormat Format = "human"
)

// Config holds logger configuration.
type Config struct {
	Format Format
	Level  Level
	Output io.Writer // defaults to stderr
}

// Logger writes structured log entries.
type Logger struct {
	config Config
	writer io.Writer
}

// NewLogger creates a logger with the given configuration.
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}
	return &Logger{config: config, writer: writer}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) shouldLog(level Level) bool {
	return levelPriority[level] >= levelPriority[l.config.Level]
}

func (l *Logger) log(level Level, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    fields,
	}

	if l.config.Format == JSONFormat {
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.writer, string(data))
		return
	}

	fmt.Fprintf(l.writer, "%s [%s] %s", e.Timestamp, e.Level, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprint(l.writer, " |")
		for _, k := range keys {
			fmt.Fprintf(l.writer, " %s=%v", k, e.Fields[k])
		}
	}
	fmt.Fprintln(l.writer)
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DebugLevel, message, fields)
}

// Info logs an informational message.
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning.
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error.
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ErrorLevel, message, fields)
}

package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheMichaelB/savesync/internal/config"
)

// LogLevel represents logging severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides structured, leveled logging for the sync engine. Field
// chains are immutable: WithField returns a child logger sharing the output.
type Logger struct {
	mu     *sync.Mutex
	level  LogLevel
	format string
	output io.Writer
	fields map[string]interface{}
}

// NewLogger creates a logger from config.
func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	var output io.Writer = os.Stderr
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	return &Logger{
		mu:     &sync.Mutex{},
		level:  parseLevel(cfg.Level),
		format: cfg.Format,
		output: output,
		fields: map[string]interface{}{},
	}, nil
}

// NewTestLogger creates a logger for tests.
func NewTestLogger(level LogLevel, output io.Writer) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: "text",
		output: output,
		fields: map[string]interface{}{},
	}
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &Logger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: merged,
	}
}

// WithError adds an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// WithSlot adds the slot number field used throughout the engine.
func (l *Logger) WithSlot(slot int) *Logger {
	return l.WithField("slot", slot)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.log(DebugLevel, msg) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.log(InfoLevel, msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.log(WarnLevel, msg) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.log(ErrorLevel, msg) }

func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if l.format == "json" {
		entry := make(map[string]interface{}, len(l.fields)+3)
		for k, v := range l.fields {
			entry[k] = v
		}
		entry["time"] = now
		entry["level"] = levelString(level)
		entry["msg"] = msg

		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, `{"level":"error","msg":"marshal log entry: %v"}`+"\n", err)
			return
		}
		data = append(data, '\n')
		_, _ = l.output.Write(data)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s", now, strings.ToUpper(levelString(level)), msg)

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}
	sb.WriteByte('\n')
	_, _ = io.WriteString(l.output, sb.String())
}

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func levelString(l LogLevel) string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

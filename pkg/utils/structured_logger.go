package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogFormat defines the output format for logs
type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
)

// ParseLogFormat parses "text" or "json".
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format: %s", format)
	}
}

// LogEntry represents a complete log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// StructuredLogger provides structured logging with levels and fields.
// Loggers derived with WithField share the output and its lock.
type StructuredLogger struct {
	out             *lockedWriter
	mu              sync.RWMutex
	level           LogLevel
	format          LogFormat
	contextFields   map[string]interface{}
	includeCaller   bool
	componentLevels map[string]LogLevel
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) write(p []byte) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = lw.w.Write(p)
}

// StructuredLoggerConfig holds configuration for the logger
type StructuredLoggerConfig struct {
	Level         LogLevel
	Output        io.Writer
	Format        LogFormat
	IncludeCaller bool
}

// DefaultStructuredLoggerConfig returns default configuration
func DefaultStructuredLoggerConfig() *StructuredLoggerConfig {
	return &StructuredLoggerConfig{
		Level:         INFO,
		Output:        os.Stderr,
		Format:        FormatText,
		IncludeCaller: false,
	}
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(config *StructuredLoggerConfig) (*StructuredLogger, error) {
	if config == nil {
		config = DefaultStructuredLoggerConfig()
	}
	if config.Output == nil {
		return nil, fmt.Errorf("logger output cannot be nil")
	}

	return &StructuredLogger{
		out:             &lockedWriter{w: config.Output},
		level:           config.Level,
		format:          config.Format,
		contextFields:   make(map[string]interface{}),
		includeCaller:   config.IncludeCaller,
		componentLevels: make(map[string]LogLevel),
	}, nil
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *StructuredLogger {
	logger, _ := NewStructuredLogger(&StructuredLoggerConfig{Level: FATAL + 1, Output: io.Discard})
	return logger
}

// WithField returns a new logger with an additional context field
func (sl *StructuredLogger) WithField(key string, value interface{}) *StructuredLogger {
	return sl.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with multiple context fields
func (sl *StructuredLogger) WithFields(fields map[string]interface{}) *StructuredLogger {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	newFields := make(map[string]interface{}, len(sl.contextFields)+len(fields))
	for k, v := range sl.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &StructuredLogger{
		out:             sl.out,
		level:           sl.level,
		format:          sl.format,
		contextFields:   newFields,
		includeCaller:   sl.includeCaller,
		componentLevels: sl.componentLevels,
	}
}

// WithComponent returns a logger with a component field
func (sl *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return sl.WithField("component", component)
}

// SetComponentLevel sets the log level for a specific component.
// Only affects loggers created from this one after the call.
func (sl *StructuredLogger) SetComponentLevel(component string, level LogLevel) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	levels := make(map[string]LogLevel, len(sl.componentLevels)+1)
	for k, v := range sl.componentLevels {
		levels[k] = v
	}
	levels[component] = level
	sl.componentLevels = levels
}

// SetLevel sets the global log level
func (sl *StructuredLogger) SetLevel(level LogLevel) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.level = level
}

// GetLevel returns the current log level
func (sl *StructuredLogger) GetLevel() LogLevel {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.level
}

// IsEnabled reports whether a message at level would be written.
func (sl *StructuredLogger) IsEnabled(level LogLevel) bool {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if component, ok := sl.contextFields["component"].(string); ok {
		if compLevel, exists := sl.componentLevels[component]; exists {
			return level >= compLevel
		}
	}
	return level >= sl.level
}

func (sl *StructuredLogger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !sl.IsEnabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		Fields:    make(map[string]interface{}),
	}

	sl.mu.RLock()
	for k, v := range sl.contextFields {
		entry.Fields[k] = v
	}
	format := sl.format
	includeCaller := sl.includeCaller
	sl.mu.RUnlock()

	for k, v := range fields {
		entry.Fields[k] = v
	}

	if includeCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			parts := strings.Split(file, "/")
			entry.Caller = fmt.Sprintf("%s:%d", parts[len(parts)-1], line)
		}
	}

	var output string
	if format == FormatJSON {
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			output = formatText(entry)
		} else {
			output = string(jsonBytes) + "\n"
		}
	} else {
		output = formatText(entry)
	}

	sl.out.write([]byte(output))
}

// formatText formats a log entry as human-readable text with sorted fields
func formatText(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(entry.Level)
	sb.WriteString("] ")

	if entry.Caller != "" {
		sb.WriteString("[")
		sb.WriteString(entry.Caller)
		sb.WriteString("] ")
	}

	sb.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(fmt.Sprintf("%v", entry.Fields[k]))
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return sb.String()
}

// Trace logs a trace message
func (sl *StructuredLogger) Trace(message string, fields ...map[string]interface{}) {
	sl.logWithFields(TRACE, message, fields...)
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	sl.logWithFields(DEBUG, message, fields...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	sl.logWithFields(INFO, message, fields...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	sl.logWithFields(WARN, message, fields...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(message string, fields ...map[string]interface{}) {
	sl.logWithFields(ERROR, message, fields...)
}

// Fatal logs a fatal message and exits
func (sl *StructuredLogger) Fatal(message string, fields ...map[string]interface{}) {
	sl.logWithFields(FATAL, message, fields...)
	os.Exit(1)
}

func (sl *StructuredLogger) logWithFields(level LogLevel, message string, fieldMaps ...map[string]interface{}) {
	var fields map[string]interface{}
	if len(fieldMaps) > 0 && fieldMaps[0] != nil {
		fields = fieldMaps[0]
	}
	sl.log(level, message, fields)
}

// Debugf logs a formatted debug message
func (sl *StructuredLogger) Debugf(format string, args ...interface{}) {
	sl.logWithFields(DEBUG, fmt.Sprintf(format, args...))
}

// Infof logs a formatted info message
func (sl *StructuredLogger) Infof(format string, args ...interface{}) {
	sl.logWithFields(INFO, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message
func (sl *StructuredLogger) Warnf(format string, args ...interface{}) {
	sl.logWithFields(WARN, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func (sl *StructuredLogger) Errorf(format string, args ...interface{}) {
	sl.logWithFields(ERROR, fmt.Sprintf(format, args...))
}

package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, level LogLevel, format LogFormat) (*StructuredLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewStructuredLogger(&StructuredLoggerConfig{
		Level:  level,
		Output: &buf,
		Format: format,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger, &buf
}

func TestNewStructuredLogger(t *testing.T) {
	logger, _ := newTestLogger(t, DEBUG, FormatText)
	if logger.GetLevel() != DEBUG {
		t.Errorf("Expected DEBUG level, got %v", logger.GetLevel())
	}

	if _, err := NewStructuredLogger(&StructuredLoggerConfig{Level: INFO}); err == nil {
		t.Error("Expected error for nil output")
	}
}

func TestLogLevels(t *testing.T) {
	logger, buf := newTestLogger(t, INFO, FormatText)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message was logged when level is INFO")
	}

	logger.Info("info message")
	if !strings.Contains(buf.String(), "[INFO] info message") {
		t.Errorf("Info message not found in output: %q", buf.String())
	}

	buf.Reset()
	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "[WARN] warn message") {
		t.Errorf("Warn message not found in output: %q", buf.String())
	}
}

func TestStructuredFields(t *testing.T) {
	logger, buf := newTestLogger(t, INFO, FormatText)

	logger.Info("asset loaded", map[string]interface{}{
		"key":  "textures/grass.png",
		"size": 512,
	})

	output := buf.String()
	if !strings.Contains(output, "{key=textures/grass.png, size=512}") {
		t.Errorf("fields not rendered in sorted order: %q", output)
	}
}

func TestWithComponent(t *testing.T) {
	logger, buf := newTestLogger(t, INFO, FormatText)

	child := logger.WithComponent("async-cache").WithField("worker", 2)
	child.Info("started")

	output := buf.String()
	if !strings.Contains(output, "component=async-cache") || !strings.Contains(output, "worker=2") {
		t.Errorf("context fields missing: %q", output)
	}

	buf.Reset()
	logger.Info("parent")
	if strings.Contains(buf.String(), "component=") {
		t.Error("child fields leaked into parent logger")
	}
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, INFO, FormatJSON)

	logger.Warn("load failed", map[string]interface{}{"key": "missing.bin"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
	if entry.Level != "WARN" || entry.Message != "load failed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["key"] != "missing.bin" {
		t.Errorf("key field = %v", entry.Fields["key"])
	}
}

func TestComponentLevels(t *testing.T) {
	logger, buf := newTestLogger(t, INFO, FormatText)
	logger.SetComponentLevel("sync-cache", DEBUG)

	logger.WithComponent("sync-cache").Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("component level DEBUG not honored")
	}

	buf.Reset()
	logger.WithComponent("async-cache").Debug("hidden")
	if buf.Len() != 0 {
		t.Error("global level not applied to other components")
	}
}

func TestFormatfMethods(t *testing.T) {
	logger, buf := newTestLogger(t, DEBUG, FormatText)

	logger.Debugf("resized pool to %d", 4)
	logger.Infof("loaded %s", "a.png")
	logger.Warnf("retry %d", 1)
	logger.Errorf("failed %v", "x")

	output := buf.String()
	for _, want := range []string{"resized pool to 4", "loaded a.png", "retry 1", "failed x"} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in %q", want, output)
		}
	}
}

func TestCaller(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewStructuredLogger(&StructuredLoggerConfig{
		Level:         INFO,
		Output:        &buf,
		IncludeCaller: true,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("Test caller")

	if !strings.Contains(buf.String(), "[structured_logger_test.go:") {
		t.Errorf("Caller information not found in output: %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	logger, buf := newTestLogger(t, ERROR, FormatText)

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Error("Info logged at ERROR level")
	}

	logger.SetLevel(TRACE)
	logger.Trace("shown")
	if !strings.Contains(buf.String(), "[TRACE] shown") {
		t.Errorf("Trace not logged after SetLevel: %q", buf.String())
	}
}

func TestDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.IsEnabled(FATAL) {
		t.Error("discard logger should not enable any level")
	}
	logger.Error("dropped")
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    LogFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"xml", FormatText, true},
	}
	for _, tt := range tests {
		got, err := ParseLogFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLogFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

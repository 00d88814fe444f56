package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("with default output", func(t *testing.T) {
		logger := NewLogger(Config{Level: InfoLevel})
		if logger == nil {
			t.Fatal("NewLogger returned nil")
		}
	})

	t.Run("with custom output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(Config{Level: InfoLevel, Output: buf})
		if logger.writer != buf {
			t.Error("Logger should use provided output writer")
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		configLvl Level
		logLvl    Level
		shouldLog bool
	}{
		{"debug logs debug", DebugLevel, DebugLevel, true},
		{"info skips debug", InfoLevel, DebugLevel, false},
		{"info logs warn", InfoLevel, WarnLevel, true},
		{"warn skips info", WarnLevel, InfoLevel, false},
		{"error skips warn", ErrorLevel, WarnLevel, false},
		{"error logs error", ErrorLevel, ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(Config{Level: tt.configLvl, Output: buf})

			logger.log(tt.logLvl, "test message", nil)

			if tt.shouldLog && buf.Len() == 0 {
				t.Error("expected log output, got none")
			}
			if !tt.shouldLog && buf.Len() > 0 {
				t.Errorf("expected no output, got %q", buf.String())
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: buf})

	logger.Info("server started", map[string]interface{}{
		"languageId": "typescript",
		"pid":        42,
	})

	var e struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if e.Level != "info" || e.Message != "server started" {
		t.Errorf("entry wrong: %+v", e)
	}
	if e.Fields["languageId"] != "typescript" {
		t.Errorf("fields wrong: %v", e.Fields)
	}
}

func TestHumanFormatSortsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: buf})

	logger.Warn("fallback", map[string]interface{}{
		"zeta":  1,
		"alpha": 2,
	})

	out := buf.String()
	if !strings.Contains(out, "[warn] fallback") {
		t.Errorf("human format wrong: %q", out)
	}
	if strings.Index(out, "alpha=") > strings.Index(out, "zeta=") {
		t.Errorf("fields not sorted: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must not panic and must swallow everything.
	logger.Error("ignored", map[string]interface{}{"k": "v"})
}

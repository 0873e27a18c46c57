package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bebsworthy/testapps/internal/config"
	looperrors "github.com/bebsworthy/testapps/internal/errors"
)

// TestNewLogger tests logger creation with different configurations
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config config.LoggingConfig
		valid  bool
	}{
		{
			name:   "valid_text_logger",
			config: config.LoggingConfig{Level: "info", Format: "text"},
			valid:  true,
		},
		{
			name:   "valid_json_logger",
			config: config.LoggingConfig{Level: "debug", Format: "json"},
			valid:  true,
		},
		{
			name:   "invalid_level",
			config: config.LoggingConfig{Level: "invalid", Format: "text"},
			valid:  false,
		},
		{
			name:   "invalid_format",
			config: config.LoggingConfig{Level: "info", Format: "invalid"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)

			if tt.valid {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				if logger == nil {
					t.Error("Expected logger to be created")
				}
			} else if err == nil {
				t.Error("Expected error for invalid config")
			}

			if logger != nil {
				logger.Close()
			}
		})
	}
}

// TestLoggerOutput tests that logger produces expected output
func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("Debug message", slog.String("key", "value"))
	logger.Info("Info message", slog.Int("number", 42))
	logger.Warn("Warning message")
	logger.Error("Error message", slog.String("error", "test error"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 log lines, got %d", len(lines))
	}

	for i, line := range lines {
		var logEntry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &logEntry); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i+1, err)
		}
		for _, field := range []string{"time", "level", "msg"} {
			if _, ok := logEntry[field]; !ok {
				t.Errorf("Line %d missing '%s' field", i+1, field)
			}
		}
		if ts, ok := logEntry["time"].(string); ok {
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("Line %d time %q is not RFC3339", i+1, ts)
			}
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLoggerWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("Expected info message to be filtered at warn level")
	}
	if !strings.Contains(output, "shown") {
		t.Error("Expected warn message in output")
	}
}

func TestNewAppLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crasher.log")

	logger, err := NewAppLogger(config.LoggingConfig{Level: "info", Format: "text", OutputFile: path}, "crasher")
	if err != nil {
		t.Fatalf("Failed to create app logger: %v", err)
	}
	defer logger.Close()

	logger.Info("hello")
}

// TestLogError tests error logging
func TestLogError(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLoggerWithWriter(config.LoggingConfig{Level: "error", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogError(context.Background(), "Operation failed", errors.New("plain failure"), slog.String("component", "test"))
	logger.LogError(context.Background(), "Loop failed", looperrors.InvalidDelay(-time.Second))

	output := buf.String()
	for _, field := range []string{"error_type", "component", "plain failure", "Operation failed", "INVALID_DELAY", "error_detail_delay"} {
		if !strings.Contains(output, field) {
			t.Errorf("Expected field '%s' in error log output", field)
		}
	}
}

func TestForComponent(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.ForComponent("loop").Info("turn")
	if !strings.Contains(buf.String(), "component=loop") {
		t.Errorf("Expected component attribute, got %q", buf.String())
	}
}

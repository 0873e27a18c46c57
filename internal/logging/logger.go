// Package logging provides structured logging functionality for testapps.
//
// Diagnostics go through slog to stderr (or a file) so that the programs'
// own stdout lines stay exactly what a supervisor under test expects to
// read.
//
// Example usage:
//
//	logger, err := logging.NewAppLogger(cfg.Logging, "crasher")
//	logger.Info("Loop started", "interval", cfg.Crasher.Interval)
//	logger.LogError(ctx, "Loop failed", err)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/errors"
)

// Logger wraps slog.Logger with testapps-specific functionality
type Logger struct {
	*slog.Logger
	config config.LoggingConfig
	writer io.Writer
}

// NewLogger creates a new structured logger with the given configuration
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	writer, err := createLogWriter(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writer: %w", err)
	}

	logger, err := NewLoggerWithWriter(cfg, writer)
	if err != nil {
		if closer, ok := writer.(io.Closer); ok && writer != os.Stderr {
			closer.Close()
		}
		return nil, err
	}
	return logger, nil
}

// NewLoggerWithWriter creates a logger that writes to w regardless of cfg.OutputFile
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Verbose,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
		writer: w,
	}, nil
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// createLogWriter creates the appropriate writer for log output
func createLogWriter(outputFile string) (io.Writer, error) {
	if outputFile == "" {
		return os.Stderr, nil
	}

	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}

	file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %w", outputFile, err)
	}

	return file, nil
}

// NewAppLogger creates a logger tagged with the test program's name
func NewAppLogger(cfg config.LoggingConfig, app string) (*Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Logger = logger.Logger.With(
		slog.String("component", "app"),
		slog.String("service", "testapps"),
		slog.String("app", app),
	)

	return logger, nil
}

// ForComponent returns a child logger for a named component
func (l *Logger) ForComponent(component string) *slog.Logger {
	return l.Logger.With(slog.String("component", component))
}

// LogError logs an error with its details. Loop errors contribute their
// structured attributes.
func (l *Logger) LogError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	var allAttrs []slog.Attr
	if loopErr, ok := err.(*errors.LoopError); ok {
		allAttrs = append(allAttrs, loopErr.LogAttrs()...)
	} else {
		allAttrs = append(allAttrs,
			slog.String("error", err.Error()),
			slog.String("error_type", fmt.Sprintf("%T", err)),
		)
	}
	allAttrs = append(allAttrs, attrs...)

	l.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// Close closes any file resources used by the logger
func (l *Logger) Close() error {
	if l.writer == os.Stderr || l.writer == os.Stdout {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

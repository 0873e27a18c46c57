package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/bebsworthy/testapps/internal/config"
	looperrors "github.com/bebsworthy/testapps/internal/errors"
	"github.com/bebsworthy/testapps/internal/logging"
	"github.com/bebsworthy/testapps/internal/loop"
	"github.com/bebsworthy/testapps/internal/metrics"
)

// setupFunc registers a program's callbacks on a fresh loop.
type setupFunc func(l *loop.Loop, logger *slog.Logger) error

// runProgram owns the loop for one test program: it creates it, lets the
// program register callbacks, runs it and tears it down.
func runProgram(ctx context.Context, cfg *config.Config, app string, setup setupFunc) error {
	if err := config.Validate(cfg); err != nil {
		return looperrors.ConfigError(looperrors.CodeInvalidConfig, "Invalid configuration", err)
	}

	logger, err := logging.NewAppLogger(cfg.Logging, app)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	monitor := metrics.NewMonitor()
	monitor.SetLogger(logger.Logger)

	l := loop.New(loop.WithLogger(logger.Logger), loop.WithObserver(monitor))
	defer l.Close()

	if err := setup(l, logger.Logger); err != nil {
		logger.LogError(ctx, "Program setup failed", err)
		return err
	}

	l.CallSoon(func() { notifySupervisor(logger.Logger, daemon.SdNotifyReady) })

	err = l.Run(ctx)
	notifySupervisor(logger.Logger, daemon.SdNotifyStopping)

	if cfg.Logging.Verbose {
		monitor.LogMetricsSummary(ctx)
	}

	if err != nil && ctx.Err() == nil {
		logger.LogError(ctx, "Loop failed", err)
		return err
	}
	logger.Debug("Program finished", slog.Any("stats", l.Stats()))
	return nil
}

// notifySupervisor reports state to systemd when run as a notify service;
// without NOTIFY_SOCKET it does nothing.
func notifySupervisor(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("Failed to notify supervisor", slog.String("state", state), slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Debug("Supervisor notified", slog.String("state", state))
	}
}

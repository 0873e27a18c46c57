package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/testapps/internal/apps"
	"github.com/bebsworthy/testapps/internal/loop"
)

var (
	timerInterval time.Duration
	timerSchedule string
)

// timerCmd represents the timer command
var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Announce the time at a fixed interval",
	Long: `Print "At the tone, the time will be HH:MM:SS -- BEEP!" immediately and then
on every tick. The tick is a cron schedule ("@every 10s" by default) or,
with --interval, a plain interval.

Ctrl+C stops the program cleanly with status 0.

Examples:
  testapps timer
  testapps timer --interval 2s
  testapps timer --schedule "*/5 * * * *"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cmd.Flags().Changed("interval") {
			cfg.Timer.Interval = timerInterval
			if !cmd.Flags().Changed("schedule") {
				cfg.Timer.Schedule = ""
			}
		}
		if cmd.Flags().Changed("schedule") {
			cfg.Timer.Schedule = timerSchedule
		}

		return runProgram(cmd.Context(), cfg, "timer", func(l *loop.Loop, logger *slog.Logger) error {
			beeper, err := apps.NewBeeper(l, cfg.Timer, logger)
			if err != nil {
				return err
			}
			if _, err := beeper.Start(); err != nil {
				return err
			}
			return apps.StopOnInterrupt(l, logger)
		})
	},
}

func init() {
	rootCmd.AddCommand(timerCmd)

	timerCmd.Flags().DurationVar(&timerInterval, "interval", 10*time.Second, "time between announcements; clears the default schedule")
	timerCmd.Flags().StringVar(&timerSchedule, "schedule", "", "cron expression or descriptor such as \"@every 10s\"")
}

package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/testapps/internal/apps"
	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/loop"
)

var (
	crasherInterval  time.Duration
	crasherThreshold float64
	crasherSeed      uint64
	crasherExitCode  int
)

// crasherCmd represents the crasher command
var crasherCmd = &cobra.Command{
	Use:   "crasher",
	Short: "Print \"still alive!\" and crash at random",
	Long: `Print "still alive!" immediately and then on every interval. On each tick a
random number in [0, 1) is drawn; below the threshold the program prints
"crashing" and exits with the configured status (1 by default).

Ctrl+C stops the program cleanly with status 0.

Examples:
  testapps crasher
  testapps crasher --interval 1s --threshold 0.5
  testapps crasher --seed 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyCrasherFlags(cmd, &cfg.Crasher)

		return runProgram(cmd.Context(), cfg, "crasher", func(l *loop.Loop, logger *slog.Logger) error {
			if _, err := apps.NewCrasher(l, cfg.Crasher, logger).Start(); err != nil {
				return err
			}
			return apps.StopOnInterrupt(l, logger)
		})
	},
}

func applyCrasherFlags(cmd *cobra.Command, c *config.CrasherConfig) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		c.Interval = crasherInterval
	}
	if flags.Changed("threshold") {
		c.Threshold = crasherThreshold
	}
	if flags.Changed("seed") {
		c.Seed = crasherSeed
	}
	if flags.Changed("exit-code") {
		c.ExitCode = crasherExitCode
	}
}

func init() {
	rootCmd.AddCommand(crasherCmd)

	crasherCmd.Flags().DurationVar(&crasherInterval, "interval", 5*time.Second, "time between ticks")
	crasherCmd.Flags().Float64Var(&crasherThreshold, "threshold", 0.2, "crash when the draw is below this value")
	crasherCmd.Flags().Uint64Var(&crasherSeed, "seed", 0, "random seed for a repeatable run (0 means random)")
	crasherCmd.Flags().IntVar(&crasherExitCode, "exit-code", 1, "exit status used when crashing")
}

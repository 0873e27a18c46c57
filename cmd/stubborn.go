package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/testapps/internal/apps"
	"github.com/bebsworthy/testapps/internal/loop"
)

var (
	stubbornIgnoreInterrupt bool
	stubbornIgnoreTerminate bool
)

// stubbornCmd represents the stubborn command
var stubbornCmd = &cobra.Command{
	Use:   "stubborn",
	Short: "Ignore SIGINT and SIGTERM",
	Long: `Run forever, printing "Got SIGINT, ignoring" or "Got SIGTERM, ignoring"
instead of exiting when those signals arrive. Use SIGKILL to end it.

A signal that is not ignored keeps its default disposition.

Examples:
  testapps stubborn
  testapps stubborn --ignore-interrupt=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cmd.Flags().Changed("ignore-interrupt") {
			cfg.Stubborn.IgnoreInterrupt = stubbornIgnoreInterrupt
		}
		if cmd.Flags().Changed("ignore-terminate") {
			cfg.Stubborn.IgnoreTerminate = stubbornIgnoreTerminate
		}

		return runProgram(cmd.Context(), cfg, "stubborn", func(l *loop.Loop, logger *slog.Logger) error {
			return apps.NewStubborn(l, cfg.Stubborn, logger).Start()
		})
	},
}

func init() {
	rootCmd.AddCommand(stubbornCmd)

	stubbornCmd.Flags().BoolVar(&stubbornIgnoreInterrupt, "ignore-interrupt", true, "ignore SIGINT")
	stubbornCmd.Flags().BoolVar(&stubbornIgnoreTerminate, "ignore-terminate", true, "ignore SIGTERM")
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/testapps/internal/config"
	looperrors "github.com/bebsworthy/testapps/internal/errors"
)

// Exit codes
const (
	ExitLoopFailure = 1
	ExitBadConfig   = 2
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Global configuration
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "testapps",
	Short: "Misbehaving programs for exercising process supervisors",
	Long: `testapps bundles small programs that misbehave on purpose, for testing
supervisors, log forwarders and restart managers:

  crasher   prints "still alive!" and randomly exits with status 1
  stubborn  ignores SIGINT and SIGTERM
  timer     prints the wall-clock time at a fixed interval

Each program runs on a single-threaded cooperative event loop. Program
output goes to stdout; diagnostics go to stderr.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, looperrors.ErrInvalidConfig) {
		return ExitBadConfig
	}
	return ExitLoopFailure
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $TESTAPPS_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostics and a metrics summary on exit")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configPath := configFile
	if configPath == "" {
		if envConfig := os.Getenv("TESTAPPS_CONFIG"); envConfig != "" {
			configPath = envConfig
		}
	}

	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(ExitBadConfig)
	}

	if verbose {
		appConfig.Logging.Verbose = true
		appConfig.Logging.Level = "debug"
	}
}

// GetConfig returns the global configuration
// This should be called after cobra initialization
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// Package config provides configuration management for testapps.
//
// Configuration is loaded in order of precedence (highest to lowest):
// 1. Command line flags
// 2. Environment variables (TESTAPPS_*)
// 3. Configuration file
// 4. Default values
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the complete testapps configuration
type Config struct {
	Crasher  CrasherConfig  `mapstructure:"crasher" yaml:"crasher"`
	Timer    TimerConfig    `mapstructure:"timer" yaml:"timer"`
	Stubborn StubbornConfig `mapstructure:"stubborn" yaml:"stubborn"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CrasherConfig contains settings for the random crasher
type CrasherConfig struct {
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	Threshold float64       `mapstructure:"threshold" yaml:"threshold"`
	ExitCode  int           `mapstructure:"exit_code" yaml:"exit_code"`
	// Seed of 0 draws from the runtime's random source.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// TimerConfig contains settings for the time beeper
type TimerConfig struct {
	// Schedule is a cron expression or descriptor; it wins over Interval.
	Schedule string        `mapstructure:"schedule" yaml:"schedule"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// StubbornConfig contains settings for the signal ignorer
type StubbornConfig struct {
	IgnoreInterrupt bool `mapstructure:"ignore_interrupt" yaml:"ignore_interrupt"`
	IgnoreTerminate bool `mapstructure:"ignore_terminate" yaml:"ignore_terminate"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Crasher: CrasherConfig{
			Interval:  5 * time.Second,
			Threshold: 0.2,
			ExitCode:  1,
			Seed:      0,
		},
		Timer: TimerConfig{
			Schedule: "@every 10s",
			Interval: 10 * time.Second,
		},
		Stubborn: StubbornConfig{
			IgnoreInterrupt: true,
			IgnoreTerminate: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			OutputFile: "",
			Verbose:    false,
		},
	}
}

// LoadConfig loads configuration from various sources
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TESTAPPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.testapps")
		v.AddConfigPath("/etc/testapps")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// An explicitly named file must exist.
			if configFile != "" {
				return nil, fmt.Errorf("config file not found: %s", configFile)
			}
		} else if configFile != "" && os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("crasher.interval", defaults.Crasher.Interval)
	v.SetDefault("crasher.threshold", defaults.Crasher.Threshold)
	v.SetDefault("crasher.exit_code", defaults.Crasher.ExitCode)
	v.SetDefault("crasher.seed", defaults.Crasher.Seed)

	v.SetDefault("timer.schedule", defaults.Timer.Schedule)
	v.SetDefault("timer.interval", defaults.Timer.Interval)

	v.SetDefault("stubborn.ignore_interrupt", defaults.Stubborn.IgnoreInterrupt)
	v.SetDefault("stubborn.ignore_terminate", defaults.Stubborn.IgnoreTerminate)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output_file", defaults.Logging.OutputFile)
	v.SetDefault("logging.verbose", defaults.Logging.Verbose)
}

// Validate checks a configuration for values the programs cannot run with
func Validate(config *Config) error {
	if config.Crasher.Interval <= 0 {
		return fmt.Errorf("crasher.interval must be positive, got %v", config.Crasher.Interval)
	}

	if config.Crasher.Threshold < 0 || config.Crasher.Threshold > 1 {
		return fmt.Errorf("crasher.threshold must be between 0 and 1, got %v", config.Crasher.Threshold)
	}

	if config.Crasher.ExitCode < 0 || config.Crasher.ExitCode > 255 {
		return fmt.Errorf("crasher.exit_code must be between 0 and 255, got %d", config.Crasher.ExitCode)
	}

	if config.Timer.Schedule == "" && config.Timer.Interval <= 0 {
		return fmt.Errorf("timer.interval must be positive when timer.schedule is empty, got %v", config.Timer.Interval)
	}

	if config.Timer.Schedule != "" {
		if _, err := cron.ParseStandard(config.Timer.Schedule); err != nil {
			return fmt.Errorf("invalid timer.schedule %q: %w", config.Timer.Schedule, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %s", config.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[config.Logging.Format] {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %s", config.Logging.Format)
	}

	return nil
}

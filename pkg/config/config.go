// Package config loads treematch settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidMinHeight  = errors.New("matcher min height must be at least 1")
	ErrInvalidStage      = errors.New("unknown matcher stage")
	ErrInvalidMaxEntries = errors.New("cache max entries must be positive")
	ErrInvalidWorkers    = errors.New("batch workers must be positive")
	ErrInvalidLogLevel   = errors.New("unknown log level")
	ErrInvalidLogFormat  = errors.New("unknown log format")
)

const (
	envPrefix  = "TREEMATCH"
	configName = ".treematch"
)

var (
	knownStages    = []string{"subtree"}
	knownLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config holds all treematch configuration.
type Config struct {
	Matcher       MatcherConfig       `mapstructure:"matcher"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Batch         BatchConfig         `mapstructure:"batch"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// MatcherConfig tunes the subtree matcher.
type MatcherConfig struct {
	Stage     string `mapstructure:"stage"`
	MinHeight int    `mapstructure:"min_height"`
}

// CacheConfig bounds the process-wide mapping cache.
type CacheConfig struct {
	MaxEntries int  `mapstructure:"max_entries"`
	Enabled    bool `mapstructure:"enabled"`
}

// BatchConfig controls the batch command.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from configPath, or from .treematch.yaml in
// the working or home directory when configPath is empty. Environment
// variables prefixed with TREEMATCH_ override file values.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("matcher.min_height", DefaultMinHeight)
	viperCfg.SetDefault("matcher.stage", DefaultStage)

	viperCfg.SetDefault("cache.enabled", DefaultCacheEnabled)
	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)

	viperCfg.SetDefault("batch.workers", DefaultBatchWorkers)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.prometheus_addr", "")
}

// Validate checks value ranges. Flags applied on top of a loaded config
// should be validated again.
func (c *Config) Validate() error {
	if c.Matcher.MinHeight < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMinHeight, c.Matcher.MinHeight)
	}

	if !slices.Contains(knownStages, strings.ToLower(c.Matcher.Stage)) {
		return fmt.Errorf("%w: %q", ErrInvalidStage, c.Matcher.Stage)
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxEntries, c.Cache.MaxEntries)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Batch.Workers)
	}

	if !slices.Contains(knownLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

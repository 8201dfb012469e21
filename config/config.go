// Package config loads runtime settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys understood in config files and, upper-cased with the env prefix, in
// the environment (e.g. CAREMESH_MEMORY_SIZE).
const (
	memorySizeKey          = "memory.size"
	compactionThresholdKey = "compaction.threshold"
	maxIterationsKey       = "orchestrator.max_iterations"
	logLevelKey            = "log.level"
	logFormatKey           = "log.format"
	httpAddrKey            = "http.addr"
)

// Config holds the validated runtime settings.
type Config struct {
	// MemoryBankSize is the memory bank capacity.
	MemoryBankSize int
	// CompactionThreshold scales the compaction size limit.
	CompactionThreshold float64
	// MaxLoopIterations bounds the loop runner.
	MaxLoopIterations int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is json or text.
	LogFormat string
	// HTTPAddr is the listen address of the HTTP layer.
	HTTPAddr string
}

// Options configures Load.
type Options struct {
	// ConfigFile is an optional path to a config file (any format viper
	// understands). Empty means environment and defaults only.
	ConfigFile string
	// EnvPrefix namespaces environment variables. Default "CAREMESH".
	EnvPrefix string
}

// Load reads settings from defaults, the optional config file and the
// environment (highest precedence) and validates them.
func Load(optFns ...func(o *Options)) (*Config, error) {
	opts := Options{EnvPrefix: "CAREMESH"}
	for _, fn := range optFns {
		fn(&opts)
	}

	v := viper.New()
	v.SetDefault(memorySizeKey, 100)
	v.SetDefault(compactionThresholdKey, 0.8)
	v.SetDefault(maxIterationsKey, 10)
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(logFormatKey, "json")
	v.SetDefault(httpAddrKey, ":8080")

	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		MemoryBankSize:      v.GetInt(memorySizeKey),
		CompactionThreshold: v.GetFloat64(compactionThresholdKey),
		MaxLoopIterations:   v.GetInt(maxIterationsKey),
		LogLevel:            strings.ToLower(v.GetString(logLevelKey)),
		LogFormat:           strings.ToLower(v.GetString(logFormatKey)),
		HTTPAddr:            v.GetString(httpAddrKey),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MemoryBankSize < 1 {
		return fmt.Errorf("memory bank size must be at least 1, got %d", c.MemoryBankSize)
	}
	if c.CompactionThreshold <= 0 {
		return fmt.Errorf("compaction threshold must be positive, got %g", c.CompactionThreshold)
	}
	if c.MaxLoopIterations < 1 {
		return fmt.Errorf("max loop iterations must be at least 1, got %d", c.MaxLoopIterations)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http listen address must not be empty")
	}
	return nil
}

// Package config loads fedq's process configuration.
//
// Values come from, in increasing precedence: built-in defaults, a
// fedq.yaml file, FEDQ_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	// Database is the SQLite triple store path.
	Database string `mapstructure:"database"`

	// ServicesDir holds the CUE service specs.
	ServicesDir string `mapstructure:"services_dir"`

	// Parallelism bounds concurrent invocations of one delegated join.
	Parallelism int `mapstructure:"parallelism"`

	// MaxInvocations caps service calls per query. Zero is unlimited.
	MaxInvocations int64 `mapstructure:"max_invocations"`

	// CacheSize enables per-service result caching when positive.
	CacheSize int `mapstructure:"cache_size"`

	LogLevel string `mapstructure:"log_level"`

	// DefaultTimeout applies to services whose spec sets no timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":              "database",
	"services":        "services_dir",
	"parallelism":     "parallelism",
	"max-invocations": "max_invocations",
	"cache-size":      "cache_size",
	"log-level":       "log_level",
	"timeout":         "default_timeout",
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database:       "fedq.db",
		ServicesDir:    "services",
		Parallelism:    1,
		LogLevel:       "info",
		DefaultTimeout: 30 * time.Second,
	}
}

// Load resolves the configuration. An empty path looks for fedq.yaml in
// the working directory and tolerates its absence; an explicit path must
// exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("database", d.Database)
	v.SetDefault("services_dir", d.ServicesDir)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("max_invocations", d.MaxInvocations)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("default_timeout", d.DefaultTimeout)

	v.SetEnvPrefix("FEDQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("fedq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if c.MaxInvocations < 0 {
		errs = append(errs, fmt.Errorf("max_invocations must not be negative"))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative"))
	}
	if c.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("default_timeout must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

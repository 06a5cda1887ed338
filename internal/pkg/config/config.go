package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Dataset generation parameters
// (peak, ring distance, field of view) are deliberately not configurable;
// they are fixed constants of the published dataset.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Elevation ElevationConfig `mapstructure:"elevation"`
	Build     BuildConfig     `mapstructure:"build"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ElevationConfig struct {
	// GridPath points at the preprocessed elevation grid loaded once at
	// first dataset request (or eagerly in batch mode).
	GridPath string `mapstructure:"grid_path"`
}

type BuildConfig struct {
	// Parallelism bounds concurrent viewpoint generation; 1 means
	// sequential. Output order is identical either way.
	Parallelism int `mapstructure:"parallelism"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("elevation.grid_path", "data/wasatch.grid")
	v.SetDefault("build.parallelism", 8)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PEAKRING_ELEVATION_GRID_PATH → elevation.grid_path
	v.SetEnvPrefix("PEAKRING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Elevation.GridPath == "" {
		errs = append(errs, "elevation.grid_path is required")
	}
	if c.Build.Parallelism < 1 || c.Build.Parallelism > 64 {
		errs = append(errs, fmt.Sprintf("build.parallelism must be 1-64, got %d", c.Build.Parallelism))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Simulation  SimulationConfig  `mapstructure:"simulation" yaml:"simulation"`
	Growth      GrowthConfig      `mapstructure:"growth" yaml:"growth"`
	Field       FieldConfig       `mapstructure:"field" yaml:"field"`
	Temperature TemperatureConfig `mapstructure:"temperature" yaml:"temperature"`
	Export      ExportConfig      `mapstructure:"export" yaml:"export"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the connection details for the optional run archive.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SimulationConfig controls the outer run loop.
type SimulationConfig struct {
	Seed                   int64   `mapstructure:"seed" yaml:"seed"`
	OriginX                float64 `mapstructure:"origin_x" yaml:"origin_x"`
	OriginY                float64 `mapstructure:"origin_y" yaml:"origin_y"`
	MaxVertices            int     `mapstructure:"max_vertices" yaml:"max_vertices"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

// GrowthConfig tunes a single growth step.
type GrowthConfig struct {
	StepLength         float64 `mapstructure:"step_length" yaml:"step_length"`
	DMin               float64 `mapstructure:"d_min" yaml:"d_min"`
	RandomnessWeight   float64 `mapstructure:"randomness_weight" yaml:"randomness_weight"`
	MaxRetriesPerStep  int     `mapstructure:"max_retries_per_step" yaml:"max_retries_per_step"`
	MaxParentResamples int     `mapstructure:"max_parent_resamples" yaml:"max_parent_resamples"`
}

// FieldConfig tunes the repulsion field.
type FieldConfig struct {
	Strength            float64 `mapstructure:"strength" yaml:"strength"`
	ChargeByTemperature bool    `mapstructure:"charge_by_temperature" yaml:"charge_by_temperature"`
	ParallelThreshold   int     `mapstructure:"parallel_threshold" yaml:"parallel_threshold"`
}

// TemperatureConfig tunes the cooling model.
type TemperatureConfig struct {
	Initial           float64 `mapstructure:"initial" yaml:"initial"`
	DecayRate         float64 `mapstructure:"decay_rate" yaml:"decay_rate"`
	ReactivationFloor float64 `mapstructure:"reactivation_floor" yaml:"reactivation_floor"`
}

// ExportConfig controls the default output of the grow and export commands.
type ExportConfig struct {
	Format   string `mapstructure:"format" yaml:"format"`
	Output   string `mapstructure:"output" yaml:"output"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "filament")
	v.SetDefault("logger.log_file", "filament.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "red")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Simulation --
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.origin_x", 0.0)
	v.SetDefault("simulation.origin_y", 0.0)
	v.SetDefault("simulation.max_vertices", 1000)
	v.SetDefault("simulation.max_consecutive_failures", 200)

	// -- Growth --
	v.SetDefault("growth.step_length", 1.0)
	v.SetDefault("growth.d_min", 0.5)
	v.SetDefault("growth.randomness_weight", 0.35)
	v.SetDefault("growth.max_retries_per_step", 16)
	v.SetDefault("growth.max_parent_resamples", 4)

	// -- Field --
	v.SetDefault("field.strength", 1.0)
	v.SetDefault("field.charge_by_temperature", false)
	v.SetDefault("field.parallel_threshold", 4096)

	// -- Temperature --
	v.SetDefault("temperature.initial", 1.0)
	v.SetDefault("temperature.decay_rate", 0.05)
	v.SetDefault("temperature.reactivation_floor", 0.02)

	// -- Export --
	v.SetDefault("export.format", "dot")
	v.SetDefault("export.output", "filament.dot")
	v.SetDefault("export.compress", false)
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Growth.StepLength <= 0 {
		return fmt.Errorf("growth.step_length must be positive")
	}
	if c.Growth.DMin <= 0 {
		return fmt.Errorf("growth.d_min must be positive")
	}
	if c.Growth.DMin >= c.Growth.StepLength {
		return fmt.Errorf("growth.d_min must be smaller than growth.step_length, otherwise no step can ever commit")
	}
	if c.Growth.RandomnessWeight < 0 || c.Growth.RandomnessWeight > 1 {
		return fmt.Errorf("growth.randomness_weight must be in [0, 1]")
	}
	if c.Growth.MaxRetriesPerStep < 0 {
		return fmt.Errorf("growth.max_retries_per_step must not be negative")
	}
	if c.Growth.MaxParentResamples < 0 {
		return fmt.Errorf("growth.max_parent_resamples must not be negative")
	}
	if c.Simulation.MaxVertices <= 0 {
		return fmt.Errorf("simulation.max_vertices must be positive")
	}
	if c.Simulation.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("simulation.max_consecutive_failures must not be negative")
	}
	if c.Temperature.Initial <= 0 {
		return fmt.Errorf("temperature.initial must be positive")
	}
	if c.Temperature.DecayRate < 0 {
		return fmt.Errorf("temperature.decay_rate must not be negative")
	}
	if c.Temperature.ReactivationFloor < 0 || c.Temperature.ReactivationFloor > 1 {
		return fmt.Errorf("temperature.reactivation_floor must be in [0, 1]")
	}
	if c.Field.Strength < 0 {
		return fmt.Errorf("field.strength must not be negative")
	}
	if c.Field.ParallelThreshold < 0 {
		return fmt.Errorf("field.parallel_threshold must not be negative")
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/stores"
	"github.com/aquasolve/aquasolve/pkg/telemetry"
)

// Config is the full application configuration.
type Config struct {
	// Storage configures session and run persistence.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Telemetry configures logging, tracing, metrics, and events.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Solver configures the default solver invocation.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Pipeline configures default pipeline behavior. Per-session
	// settings override these.
	Pipeline engine.PipelineConfig `json:"pipeline" yaml:"pipeline"`
}

// StorageConfig configures the session store.
type StorageConfig struct {
	// Backend selects the store implementation (sqlite, memory).
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=sqlite memory"`

	// Path is the SQLite database file path.
	Path string `json:"path" yaml:"path" validate:"required_if=Backend sqlite"`

	// MaxOpenConns limits open connections.
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`

	// MaxIdleConns limits idle connections.
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
}

// TelemetryConfig mirrors the telemetry package configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `json:"logging" yaml:"logging"`

	// Tracing configures tracing.
	Tracing telemetry.TracingConfig `json:"tracing" yaml:"tracing"`

	// Metrics configures metrics collection.
	Metrics telemetry.MetricsConfig `json:"metrics" yaml:"metrics"`
}

// SolverConfig configures the default solver invocation.
type SolverConfig struct {
	// Name selects the solver.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Tolerance is the convergence tolerance.
	Tolerance float64 `json:"tolerance" yaml:"tolerance" validate:"gt=0"`

	// MaxIterations caps solver iterations.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" validate:"gt=0"`

	// Options are extra solver options passed through unchanged.
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Default returns the default application configuration.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Backend:      "sqlite",
			Path:         "aquasolve.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Telemetry: TelemetryConfig{
			Logging: tel.Logging,
			Tracing: tel.Tracing,
			Metrics: tel.Metrics,
		},
		Solver: SolverConfig{
			Name:          "residual",
			Tolerance:     1e-6,
			MaxIterations: 200,
		},
		Pipeline: engine.DefaultPipelineConfig(),
	}
}

// Load reads the configuration file at path, layering it over the
// defaults and validating the result. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parse(data, cfg)
}

// LoadFromBytes parses a configuration document over the defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	return parse(data, Default())
}

func parse(data []byte, cfg *Config) (*Config, error) {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	telCfg := c.telemetryConfig()
	if err := telCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Pipeline.RelaxationFactor < 0 || c.Pipeline.RelaxationFactor > 1 {
		return fmt.Errorf("invalid config: relaxation factor must be in [0, 1], got %v",
			c.Pipeline.RelaxationFactor)
	}
	if c.Pipeline.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("invalid config: max recovery attempts must not be negative")
	}

	return nil
}

// TelemetryConfig assembles the telemetry package configuration.
func (c *Config) telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Logging = c.Telemetry.Logging
	cfg.Tracing = c.Telemetry.Tracing
	cfg.Metrics = c.Telemetry.Metrics
	return cfg
}

// Telemetry builds the telemetry bundle configuration.
func (c *Config) TelemetryBundle() *telemetry.Config {
	return c.telemetryConfig()
}

// StoreConfig builds the SQLite store configuration.
func (c *Config) StoreConfig() stores.Config {
	sc := stores.DefaultConfig(c.Storage.Path)
	if c.Storage.MaxOpenConns > 0 {
		sc.MaxOpenConns = c.Storage.MaxOpenConns
	}
	if c.Storage.MaxIdleConns > 0 {
		sc.MaxIdleConns = c.Storage.MaxIdleConns
	}
	return sc
}

// SolverOptions merges the solver defaults into a single option map
// for the solver interface.
func (c *Config) SolverOptions() map[string]interface{} {
	opts := map[string]interface{}{
		"solver":         c.Solver.Name,
		"tolerance":      c.Solver.Tolerance,
		"max_iterations": c.Solver.MaxIterations,
	}
	for k, v := range c.Solver.Options {
		opts[k] = v
	}
	return opts
}

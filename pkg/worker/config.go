package worker

import (
	"errors"
	"fmt"

	"github.com/clinstream/tlc/pkg/compiler"
	"github.com/clinstream/tlc/pkg/redis"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrCatalogRequired is returned when no catalog path is configured
	ErrCatalogRequired = errors.New("catalog path is required")
	// ErrVariablesRequired is returned when no variables are configured
	ErrVariablesRequired = errors.New("at least one variable reference is required")
	// ErrInvalidGranularity is returned for an unrecognized granularity name
	ErrInvalidGranularity = errors.New("granularity must be \"day\" or \"second\"")
)

// Config represents the complete worker configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	// Dependencies
	Redis redis.Config `yaml:"redis"`

	// Worker specific
	Concurrency     int `yaml:"concurrency" default:"10"`
	ShutdownTimeout int `yaml:"shutdownTimeout" default:"30"`

	Compile CompileConfig `yaml:"compile"`
}

// CompileConfig fixes the variable set and compiler behavior for every task
// this worker serves. All workers of a fleet must share it so a partition
// compiles identically regardless of which worker claims it.
type CompileConfig struct {
	// Catalog is the path to the variable catalog yaml file.
	Catalog string `yaml:"catalog"`

	// Variables are the requested variable references; dependencies of
	// derived variables are pulled in automatically.
	Variables []string `yaml:"variables"`

	// Granularity keys snapshots by "day" (default) or "second".
	Granularity string `yaml:"granularity" default:"day"`

	// DisableCarryForward starts every snapshot from a fresh baseline.
	DisableCarryForward bool `yaml:"disableCarryForward"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return c.Compile.Validate()
}

// Validate validates the compile configuration
func (c *CompileConfig) Validate() error {
	if c.Catalog == "" {
		return ErrCatalogRequired
	}

	if len(c.Variables) == 0 {
		return ErrVariablesRequired
	}

	if _, err := c.CompilerOptions(); err != nil {
		return err
	}

	return nil
}

// CompilerOptions translates the yaml-level settings into compiler options.
func (c *CompileConfig) CompilerOptions() (compiler.Options, error) {
	opts := compiler.Options{DisableCarryForward: c.DisableCarryForward}

	switch c.Granularity {
	case "", "day":
		opts.Granularity = compiler.GranularityDay
	case "second":
		opts.Granularity = compiler.GranularitySecond
	default:
		return opts, fmt.Errorf("%w: %q", ErrInvalidGranularity, c.Granularity)
	}

	return opts, nil
}

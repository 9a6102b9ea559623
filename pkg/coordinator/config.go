package coordinator

import (
	"errors"
	"time"

	"github.com/clinstream/tlc/pkg/redis"
)

var (
	// ErrIngestDirRequired is returned when no ingest directory is configured
	ErrIngestDirRequired = errors.New("ingest directory is required")
	// ErrInvalidPartitions is returned when the partition count is not positive
	ErrInvalidPartitions = errors.New("partition count must be positive")
	// ErrScheduleRequired is returned when the sweep schedule is empty
	ErrScheduleRequired = errors.New("sweep schedule is required")
)

// Config represents the complete coordinator configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9090"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	// Dependencies
	Redis redis.Config `yaml:"redis"`

	// Coordinator specific
	Ingest IngestConfig `yaml:"ingest"`
}

// IngestConfig controls the periodic sweep that partitions source files and
// enqueues compile tasks.
type IngestConfig struct {
	// Dir is the directory swept for timeline log files.
	Dir string `yaml:"dir"`

	// Pattern is the filename glob matched within Dir.
	Pattern string `yaml:"pattern" default:"*.tl"`

	// Schedule is a cron expression or @every duration for sweeps.
	Schedule string `yaml:"schedule" default:"@every 1m"`

	// Partitions is the number of byte-range partitions per file; normally
	// set to the worker fleet's total concurrency.
	Partitions int `yaml:"partitions" default:"4"`

	// RecheckWindow suppresses re-enqueueing a partition that completed
	// within this window.
	RecheckWindow time.Duration `yaml:"recheckWindow" default:"1h"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if c.Ingest.Dir == "" {
		return ErrIngestDirRequired
	}

	if c.Ingest.Partitions <= 0 {
		return ErrInvalidPartitions
	}

	if c.Ingest.Schedule == "" {
		return ErrScheduleRequired
	}

	return nil
}

// Package redis provides Redis client configuration
package redis

import (
	"errors"
	"fmt"
)

// ErrURLRequired is returned when the Redis URL is not provided
var ErrURLRequired = errors.New("redis URL is required")

// Config holds Redis connection configuration shared by the coordinator and
// the workers.
type Config struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix" default:"tlc"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	if c.Prefix == "" {
		c.Prefix = "tlc"
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}

// Package config holds the tunables of the pool and the retry executor.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, a YAML file, ASYNCEXEC_* environment variables, command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azargarov/asyncexec"
	"github.com/azargarov/asyncexec/workerpool"
)

// Config is the flat set of named options.
type Config struct {
	Pool  PoolConfig  `yaml:"pool"`
	Retry RetryConfig `yaml:"retry"`
}

type PoolConfig struct {
	MinWorkers    int           `yaml:"min_workers"`
	MaxWorkers    int           `yaml:"max_workers"`
	QueueCapacity int           `yaml:"queue_capacity"`
	KeepAlive     time.Duration `yaml:"keep_alive"`
	PinWorkers    bool          `yaml:"pin_workers"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	// MaxBackoff above Backoff enables exponential delays.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns 1/15/20 pool sizing and two attempts one second apart.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			MinWorkers:    workerpool.DefaultMinWorkers,
			MaxWorkers:    workerpool.DefaultMaxWorkers,
			QueueCapacity: workerpool.DefaultQueueSize,
			KeepAlive:     workerpool.DefaultKeepAlive,
		},
		Retry: RetryConfig{
			MaxAttempts: asyncexec.DefaultAttempts,
			Backoff:     asyncexec.DefaultBackoff,
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid option.
func (c Config) Validate() error {
	var errs []error
	p, r := c.Pool, c.Retry
	if p.MinWorkers < 0 {
		errs = append(errs, fmt.Errorf("pool.min_workers must be >= 0, got %d", p.MinWorkers))
	}
	if p.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("pool.max_workers must be >= 1, got %d", p.MaxWorkers))
	}
	if p.MaxWorkers >= 1 && p.MinWorkers > p.MaxWorkers {
		errs = append(errs, fmt.Errorf("pool.min_workers (%d) exceeds pool.max_workers (%d)", p.MinWorkers, p.MaxWorkers))
	}
	if p.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("pool.queue_capacity must be >= 0, got %d", p.QueueCapacity))
	}
	if p.KeepAlive <= 0 {
		errs = append(errs, fmt.Errorf("pool.keep_alive must be positive, got %s", p.KeepAlive))
	}
	if r.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", r.MaxAttempts))
	}
	if r.Backoff <= 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must be positive, got %s", r.Backoff))
	}
	if r.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry.max_backoff must be >= 0, got %s", r.MaxBackoff))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PoolOptions maps the pool section onto workerpool options.
func (c Config) PoolOptions() workerpool.Options {
	return workerpool.Options{
		MinWorkers: c.Pool.MinWorkers,
		MaxWorkers: c.Pool.MaxWorkers,
		QueueSize:  c.Pool.QueueCapacity,
		KeepAlive:  c.Pool.KeepAlive,
		PinWorkers: c.Pool.PinWorkers,
	}
}

// RetryPolicy maps the retry section onto a retry policy.
func (c Config) RetryPolicy() asyncexec.RetryPolicy {
	return asyncexec.RetryPolicy{
		Attempts: c.Retry.MaxAttempts,
		Initial:  c.Retry.Backoff,
		Max:      c.Retry.MaxBackoff,
	}
}

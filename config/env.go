package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASYNCEXEC_"

// override ties one option to its environment key and command-line flag.
type override struct {
	envKey string
	flag   string
	parse  func(*Config, string) error
	copy   func(dst *Config, src Config)
}

var overrides = []override{
	{"POOL_MIN_WORKERS", "min-workers",
		intField(func(c *Config) *int { return &c.Pool.MinWorkers }),
		func(d *Config, s Config) { d.Pool.MinWorkers = s.Pool.MinWorkers }},
	{"POOL_MAX_WORKERS", "max-workers",
		intField(func(c *Config) *int { return &c.Pool.MaxWorkers }),
		func(d *Config, s Config) { d.Pool.MaxWorkers = s.Pool.MaxWorkers }},
	{"POOL_QUEUE_CAPACITY", "queue-capacity",
		intField(func(c *Config) *int { return &c.Pool.QueueCapacity }),
		func(d *Config, s Config) { d.Pool.QueueCapacity = s.Pool.QueueCapacity }},
	{"POOL_KEEP_ALIVE", "keep-alive",
		durationField(func(c *Config) *time.Duration { return &c.Pool.KeepAlive }),
		func(d *Config, s Config) { d.Pool.KeepAlive = s.Pool.KeepAlive }},
	{"POOL_PIN_WORKERS", "pin-workers",
		boolField(func(c *Config) *bool { return &c.Pool.PinWorkers }),
		func(d *Config, s Config) { d.Pool.PinWorkers = s.Pool.PinWorkers }},
	{"RETRY_MAX_ATTEMPTS", "retry-attempts",
		intField(func(c *Config) *int { return &c.Retry.MaxAttempts }),
		func(d *Config, s Config) { d.Retry.MaxAttempts = s.Retry.MaxAttempts }},
	{"RETRY_BACKOFF", "retry-backoff",
		durationField(func(c *Config) *time.Duration { return &c.Retry.Backoff }),
		func(d *Config, s Config) { d.Retry.Backoff = s.Retry.Backoff }},
	{"RETRY_MAX_BACKOFF", "retry-max-backoff",
		durationField(func(c *Config) *time.Duration { return &c.Retry.MaxBackoff }),
		func(d *Config, s Config) { d.Retry.MaxBackoff = s.Retry.MaxBackoff }},
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// boolField accepts true/1/yes and false/0/no, case-insensitive.
func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*field(c) = true
		case "false", "0", "no":
			*field(c) = false
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
		return nil
	}
}

// ApplyEnv overrides options from ASYNCEXEC_* variables. Empty variables are
// ignored. Unparsable values are reported and leave the option unchanged.
func (c *Config) ApplyEnv() error {
	var errs []error
	for _, o := range overrides {
		v, ok := os.LookupEnv(EnvPrefix + o.envKey)
		if !ok || v == "" {
			continue
		}
		if err := o.parse(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.envKey, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// BindFlags registers one flag per option on fs, storing into c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Pool.MinWorkers, "min-workers", c.Pool.MinWorkers, "minimum number of pool workers")
	fs.IntVar(&c.Pool.MaxWorkers, "max-workers", c.Pool.MaxWorkers, "maximum number of pool workers")
	fs.IntVar(&c.Pool.QueueCapacity, "queue-capacity", c.Pool.QueueCapacity, "pool queue capacity")
	fs.DurationVar(&c.Pool.KeepAlive, "keep-alive", c.Pool.KeepAlive, "idle time before an extra worker exits")
	fs.BoolVar(&c.Pool.PinWorkers, "pin-workers", c.Pool.PinWorkers, "pin workers to CPUs (linux)")
	fs.IntVar(&c.Retry.MaxAttempts, "retry-attempts", c.Retry.MaxAttempts, "attempts per retryable call")
	fs.DurationVar(&c.Retry.Backoff, "retry-backoff", c.Retry.Backoff, "delay between attempts")
	fs.DurationVar(&c.Retry.MaxBackoff, "retry-max-backoff", c.Retry.MaxBackoff, "cap for exponential delays, 0 for fixed")
}

// ApplyFlags copies into c the options whose flag was set explicitly on fs.
// from is the Config the flags were bound to.
func (c *Config) ApplyFlags(fs *flag.FlagSet, from Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, o := range overrides {
		if set[o.flag] {
			o.copy(c, from)
		}
	}
}

// Package config defines the runtime configuration for telfs and
// validates it.
package config

import (
	"time"

	ncerr "telfs/internal/errors"
	"telfs/util"
)

// Config holds every tuneable for a telfs server.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	Host string // bind host; empty means every interface
	Port int

	// ── Sandbox ──────────────────────────────────────────────────────
	Root       string // host directory clients are confined to
	CreateRoot bool   // create Root if it does not exist

	// ── Workers ──────────────────────────────────────────────────────
	Workers    int
	QueueDepth int

	// ── Limits ───────────────────────────────────────────────────────
	MaxLineLength int
	CommandRate   float64 // commands/second per connection; 0 disables
	CommandBurst  int
	IdleTimeout   time.Duration // 0 = never
	WriteTimeout  time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Port:          DefaultPort,
		Root:          DefaultRoot,
		CreateRoot:    true,
		Workers:       DefaultWorkers,
		QueueDepth:    DefaultQueueDepth,
		MaxLineLength: DefaultMaxLineLength,
		CommandRate:   DefaultCommandRate,
		CommandBurst:  DefaultCommandBurst,
		WriteTimeout:  DefaultWriteTimeout,
		Verbose:       1,
	}
}

// Address returns the host:port the server binds.
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    "the default is 5678",
		}
	}
	if c.Root == "" {
		return &ncerr.ConfigError{Field: "root", Message: "must not be empty"}
	}
	if c.Workers < 1 {
		return &ncerr.ConfigError{Field: "workers", Value: c.Workers, Message: "must be at least 1"}
	}
	if c.QueueDepth < 0 {
		return &ncerr.ConfigError{Field: "queue", Value: c.QueueDepth, Message: "must not be negative"}
	}
	if c.MaxLineLength < MinMaxLineLength {
		return &ncerr.ConfigError{
			Field:   "max-line",
			Value:   c.MaxLineLength,
			Message: "too small",
			Hint:    "use at least 16 bytes",
		}
	}
	if c.CommandRate < 0 {
		return &ncerr.ConfigError{Field: "rate", Value: c.CommandRate, Message: "must not be negative", Hint: "use 0 to disable flood control"}
	}
	if c.CommandRate > 0 && c.CommandBurst < 1 {
		return &ncerr.ConfigError{Field: "burst", Value: c.CommandBurst, Message: "must be at least 1 when --rate is set"}
	}
	if c.IdleTimeout < 0 {
		return &ncerr.ConfigError{Field: "idle-timeout", Value: c.IdleTimeout, Message: "must not be negative"}
	}
	return nil
}

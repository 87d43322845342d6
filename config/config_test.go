package config

import (
	"strings"
	"testing"
	"time"

	ncerr "telfs/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Port != 5678 || cfg.Root != "server" {
		t.Errorf("defaults = port %d root %q", cfg.Port, cfg.Root)
	}
	if got := cfg.Address(); got != ":5678" {
		t.Errorf("Address() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantSub string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "port", "hint:"},
		{"port too big", func(c *Config) { c.Port = 70000 }, "port", "out of range"},
		{"empty root", func(c *Config) { c.Root = "" }, "root", "must not be empty"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers", "at least 1"},
		{"negative queue", func(c *Config) { c.QueueDepth = -1 }, "queue", "negative"},
		{"tiny line", func(c *Config) { c.MaxLineLength = 4 }, "max-line", "hint:"},
		{"negative rate", func(c *Config) { c.CommandRate = -1 }, "rate", "disable"},
		{"zero burst", func(c *Config) { c.CommandRate = 5; c.CommandBurst = 0 }, "burst", "--rate"},
		{"negative idle", func(c *Config) { c.IdleTimeout = -time.Second }, "idle-timeout", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ncerr.ConfigError
			if !ncerr.As(err, &ce) || ce.Field != tt.field {
				t.Fatalf("err = %v, want ConfigError on %q", err, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestDefault_FloodControlOff keeps pasted scripts working out of the
// box: the limiter only runs when --rate is given.
func TestDefault_FloodControlOff(t *testing.T) {
	cfg := Default()
	if cfg.CommandRate != 0 {
		t.Errorf("default CommandRate = %v, want 0", cfg.CommandRate)
	}
	if cfg.CommandBurst < 100 {
		t.Errorf("default CommandBurst = %d, too small for a pasted script", cfg.CommandBurst)
	}
}

func TestValidate_RateDisabledIgnoresBurst(t *testing.T) {
	cfg := Default()
	cfg.CommandRate = 0
	cfg.CommandBurst = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("rate 0 should not require a burst: %v", err)
	}
}

package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TELFS_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TELFS_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("TELFS_PORT"); v > 0 {
		cfg.Port = v
	}

	// Sandbox
	if v := os.Getenv("TELFS_ROOT"); v != "" {
		cfg.Root = v
	}
	if envBool("TELFS_NO_CREATE_ROOT") {
		cfg.CreateRoot = false
	}

	// Workers
	if v := envInt("TELFS_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("TELFS_QUEUE"); v > 0 {
		cfg.QueueDepth = v
	}

	// Limits
	if v := envInt("TELFS_MAX_LINE"); v > 0 {
		cfg.MaxLineLength = v
	}
	if v, ok := envFloat("TELFS_RATE"); ok {
		cfg.CommandRate = v
	}
	if v := envInt("TELFS_BURST"); v > 0 {
		cfg.CommandBurst = v
	}
	if v := envInt("TELFS_IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = secondsDuration(v)
	}

	// Output
	if v := envInt("TELFS_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// envFloat reports ok=false when key is unset or unparsable, so an
// explicit "0" can still switch a feature off.
func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LedgerConfig holds connection configuration for the session ledger (the
// durable handshake-record store of spec.md §3/§6). It replaces the
// teacher's BlockchainConfig: same preset/env-override shape, pointed at a
// ledger backend instead of an RPC endpoint.
type LedgerConfig struct {
	Backend        string        `yaml:"backend" json:"backend"` // "memory" or "postgres"
	DSN            string        `yaml:"dsn" json:"dsn"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LedgerPresets defines preset configurations for known deployment targets.
var LedgerPresets = map[string]*LedgerConfig{
	"local": {
		Backend:        "memory",
		MaxRetries:     3,
		RetryDelay:     time.Second,
		RequestTimeout: 30 * time.Second,
	},
	"staging": {
		Backend:        "postgres",
		MaxRetries:     5,
		RetryDelay:     2 * time.Second,
		RequestTimeout: 60 * time.Second,
	},
	"production": {
		Backend:        "postgres",
		MaxRetries:     5,
		RetryDelay:     3 * time.Second,
		RequestTimeout: 90 * time.Second,
	},
}

// LoadLedgerConfig loads ledger configuration from environment variables,
// layered on top of the preset for env.
func LoadLedgerConfig(env string) (*LedgerConfig, error) {
	preset, ok := LedgerPresets[strings.ToLower(env)]
	if !ok {
		preset = LedgerPresets["local"]
	}

	cfg := &LedgerConfig{
		Backend:        preset.Backend,
		DSN:            preset.DSN,
		MaxRetries:     preset.MaxRetries,
		RetryDelay:     preset.RetryDelay,
		RequestTimeout: preset.RequestTimeout,
	}

	if backend := os.Getenv("SECUREMSG_LEDGER_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	if dsn := os.Getenv("SECUREMSG_LEDGER_DSN"); dsn != "" {
		cfg.DSN = dsn
	}
	if retries := os.Getenv("SECUREMSG_LEDGER_MAX_RETRIES"); retries != "" {
		r, err := strconv.Atoi(retries)
		if err != nil {
			return nil, fmt.Errorf("invalid max retries: %w", err)
		}
		cfg.MaxRetries = r
	}

	return cfg, nil
}

// Validate checks if the ledger configuration is usable.
func (c *LedgerConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("ledger DSN is required for the postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Backend)
	}
}

// IsMemory returns true if the configuration selects the in-memory backend.
func (c *LedgerConfig) IsMemory() bool {
	return c.Backend == "" || c.Backend == "memory"
}

// GetRetryConfig returns retry configuration for ledger operations.
func (c *LedgerConfig) GetRetryConfig() (maxRetries int, delay time.Duration) {
	return c.MaxRetries, c.RetryDelay
}

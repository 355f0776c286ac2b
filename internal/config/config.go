// Package config defines process configuration and its loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers a YAML file and TABROOM_* environment variables on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver selects the store backend: postgres, pgx or sqlite.
	DatabaseDriver string `koanf:"database_driver"`
	// DatabaseDSN is the driver-specific connection string.
	DatabaseDSN string `koanf:"database_dsn"`

	// DrawWorkerCount sets the number of blocking draw workers.
	DrawWorkerCount int `koanf:"draw_worker_count"`
	// DrawQueueSize bounds pending draw jobs.
	DrawQueueSize int `koanf:"draw_queue_size"`
	// DrawWaitMS is how long a request waits for a draw before answering "still running".
	DrawWaitMS int `koanf:"draw_wait_ms"`
	// DrawSeed seeds tie-breaking randomness; 0 picks a fresh seed per draw.
	DrawSeed int64 `koanf:"draw_seed"`

	JWTSecret     string `koanf:"jwt_secret"`
	JWTIssuer     string `koanf:"jwt_issuer"`
	JWTTTLMinutes int    `koanf:"jwt_ttl_minutes"`

	// RateLimitRPS and RateLimitBurst bound mutating requests per client IP.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// NATSURL enables the broadcast bridge when non-empty.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// BroadcastBuffer is the per-subscriber buffer of the in-process broadcast channel.
	BroadcastBuffer int `koanf:"broadcast_buffer"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		DatabaseDriver:  DriverSQLite,
		DatabaseDSN:     "file:tabroom.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		DrawWorkerCount: runtime.NumCPU(),
		DrawQueueSize:   64,
		DrawWaitMS:      20_000,
		JWTIssuer:       "tabroom",
		JWTTTLMinutes:   12 * 60,
		RateLimitRPS:    5,
		RateLimitBurst:  20,
		NATSSubject:     "tabroom.broadcast",
		BroadcastBuffer: 64,
	}
}

// DrawWait returns DrawWaitMS as a duration.
func (c *Config) DrawWait() time.Duration {
	return time.Duration(c.DrawWaitMS) * time.Millisecond
}

// JWTTTL returns JWTTTLMinutes as a duration.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabaseDriver != DriverPostgres && c.DatabaseDriver != DriverPgx && c.DatabaseDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	case strings.TrimSpace(c.DatabaseDSN) == "":
		return fmt.Errorf("%w: database_dsn must not be empty", ErrInvalidConfig)
	case c.DrawWorkerCount < 1:
		return fmt.Errorf("%w: draw_worker_count must be positive", ErrInvalidConfig)
	case c.DrawQueueSize < 1:
		return fmt.Errorf("%w: draw_queue_size must be positive", ErrInvalidConfig)
	case c.DrawWaitMS < 0:
		return fmt.Errorf("%w: draw_wait_ms must not be negative", ErrInvalidConfig)
	case c.JWTTTLMinutes < 1:
		return fmt.Errorf("%w: jwt_ttl_minutes must be positive", ErrInvalidConfig)
	case c.RateLimitRPS <= 0 || c.RateLimitBurst < 1:
		return fmt.Errorf("%w: rate limit must allow at least one request", ErrInvalidConfig)
	}
	return nil
}

// Package persistence stores completed run results in Postgres via
// jackc/pgx and manages schema with golang-migrate.
package persistence

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDSN is returned when the DSN is empty or invalid.
	ErrInvalidDSN = errors.New("persistence: invalid or empty DSN")
	// ErrMigrationFailed is returned when migrations fail to apply.
	ErrMigrationFailed = errors.New("persistence: migration failed")
)

// Config holds database connection configuration.
type Config struct {
	DSN string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      1 * time.Second,
	}
}

// Validate checks the configuration, filling in defaults for any
// zero-valued pool or delay tunable so a caller only needs to set the DSN.
// RetryAttempts is not defaulted: a negative value is clamped to 0.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 1 * time.Minute
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
	return nil
}

// Package db owns database connectivity for PharmaDB: the bounded
// pgx connection pool, the two scoped acquisition modes (plain and
// transactional), schema application, and error classification.
package db

import (
	"errors"
	"fmt"
	"time"
)

// Default pool sizing. The test configuration uses a larger ceiling to
// support concurrent test clients.
const (
	DefaultMinConns = 2
	DefaultMaxConns = 10
)

// Config holds everything needed to open the connection pool.
type Config struct {
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	MinConns       int32
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("database name must not be empty")
	}
	if c.User == "" {
		return errors.New("user must not be empty")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("min connections must not be negative: %d", c.MinConns)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be at least 1: %d", c.MaxConns)
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) exceeds max connections (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// DSN renders the config as a pgx connection string. The password is
// included here and must never be logged; use Redacted for diagnostics.
func (c Config) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		c.Host, c.Port, c.Database, c.User, c.Password)
	if c.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", int(c.ConnectTimeout.Seconds()))
	}
	return dsn
}

// Redacted returns a loggable description of the connection target.
func (c Config) Redacted() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s", c.Host, c.Port, c.Database, c.User)
}

// withDefaults fills unset pool sizes.
func (c Config) withDefaults() Config {
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	return c
}

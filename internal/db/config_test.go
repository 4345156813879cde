package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		Database: "pharmacopoeia",
		User:     "postgres",
		Password: "secret",
		MinConns: 2,
		MaxConns: 10,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty host", func(c *Config) { c.Host = "" }, "host"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"empty user", func(c *Config) { c.User = "" }, "user"},
		{"negative min", func(c *Config) { c.MinConns = -1 }, "min connections"},
		{"zero max", func(c *Config) { c.MaxConns = 0 }, "max connections"},
		{"min above max", func(c *Config) { c.MinConns = 20 }, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := validConfig()
	cfg.ConnectTimeout = 30 * time.Second

	dsn := cfg.DSN()
	assert.Equal(t,
		"host=localhost port=5432 dbname=pharmacopoeia user=postgres password=secret connect_timeout=30",
		dsn)

	cfg.ConnectTimeout = 0
	assert.NotContains(t, cfg.DSN(), "connect_timeout")
}

func TestConfigRedactedOmitsPassword(t *testing.T) {
	cfg := validConfig()
	redacted := cfg.Redacted()
	assert.NotContains(t, redacted, "secret")
	assert.Contains(t, redacted, "pharmacopoeia")
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, Database: "d", User: "u"}
	filled := cfg.withDefaults()
	assert.Equal(t, int32(DefaultMinConns), filled.MinConns)
	assert.Equal(t, int32(DefaultMaxConns), filled.MaxConns)

	cfg.MinConns = 5
	cfg.MaxConns = 50
	filled = cfg.withDefaults()
	assert.Equal(t, int32(5), filled.MinConns)
	assert.Equal(t, int32(50), filled.MaxConns)
}

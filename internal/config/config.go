// Package config loads database connection settings. Precedence is
// environment variables over an optional config.yaml over built-in
// defaults. A parallel TEST_DB_* set targets an isolated database for
// the integration suite.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pharmaai/pharmadb/internal/db"
)

// Config keys as they appear in config.yaml.
const (
	keyHost           = "db.host"
	keyPort           = "db.port"
	keyName           = "db.name"
	keyUser           = "db.user"
	keyPassword       = "db.password"
	keyMinConns       = "db.min_conns"
	keyMaxConns       = "db.max_conns"
	keyConnectTimeout = "db.connect_timeout"
)

// Built-in defaults.
const (
	defaultHost     = "localhost"
	defaultPort     = 5432
	defaultName     = "pharmacopoeia"
	defaultUser     = "postgres"
	defaultPassword = "postgres"
	defaultTimeout  = 30 * time.Second
)

// Load reads the primary database configuration. configFile may be
// empty, in which case only environment variables and defaults apply.
func Load(configFile string) (db.Config, error) {
	v := viper.New()
	v.SetDefault(keyHost, defaultHost)
	v.SetDefault(keyPort, defaultPort)
	v.SetDefault(keyName, defaultName)
	v.SetDefault(keyUser, defaultUser)
	v.SetDefault(keyPassword, defaultPassword)
	v.SetDefault(keyMinConns, db.DefaultMinConns)
	v.SetDefault(keyMaxConns, db.DefaultMaxConns)
	v.SetDefault(keyConnectTimeout, defaultTimeout)

	bindEnv(v, "DB")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return db.Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return fromViper(v), nil
}

// LoadTest reads the test-database configuration from TEST_DB_* env
// variables. The database name defaults to the primary name with a
// _test suffix, and the pool ceiling is larger to support concurrent
// test clients.
func LoadTest() (db.Config, error) {
	primary, err := Load("")
	if err != nil {
		return db.Config{}, err
	}

	v := viper.New()
	v.SetDefault(keyHost, primary.Host)
	v.SetDefault(keyPort, primary.Port)
	v.SetDefault(keyName, primary.Database+"_test")
	v.SetDefault(keyUser, primary.User)
	v.SetDefault(keyPassword, primary.Password)
	v.SetDefault(keyMinConns, 5)
	v.SetDefault(keyMaxConns, 30)
	v.SetDefault(keyConnectTimeout, defaultTimeout)

	bindEnv(v, "TEST_DB")

	return fromViper(v), nil
}

func bindEnv(v *viper.Viper, prefix string) {
	// Explicit bindings: the yaml keys are nested under "db" while the
	// env names are flat, so AutomaticEnv's key mangling does not fit.
	_ = v.BindEnv(keyHost, prefix+"_HOST")
	_ = v.BindEnv(keyPort, prefix+"_PORT")
	_ = v.BindEnv(keyName, prefix+"_NAME")
	_ = v.BindEnv(keyUser, prefix+"_USER")
	_ = v.BindEnv(keyPassword, prefix+"_PASSWORD")
	_ = v.BindEnv(keyMinConns, prefix+"_MIN_CONNS")
	_ = v.BindEnv(keyMaxConns, prefix+"_MAX_CONNS")
}

func fromViper(v *viper.Viper) db.Config {
	return db.Config{
		Host:           v.GetString(keyHost),
		Port:           v.GetInt(keyPort),
		Database:       v.GetString(keyName),
		User:           v.GetString(keyUser),
		Password:       v.GetString(keyPassword),
		MinConns:       v.GetInt32(keyMinConns),
		MaxConns:       v.GetInt32(keyMaxConns),
		ConnectTimeout: v.GetDuration(keyConnectTimeout),
	}
}

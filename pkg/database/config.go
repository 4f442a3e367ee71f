package database

import (
	"errors"
	"time"
)

// Config holds database configuration.
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	RetryDelay      time.Duration `json:"retry_delay"`

	// MigrationsPath overrides the embedded migrations when set.
	MigrationsPath string `json:"migrations_path"`
}

// DefaultConfig returns the configuration used for a single-node deployment.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/lessoncast.db",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		WriteTimeout:    30 * time.Second,
		RetryDelay:      5 * time.Second,
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("connection max idle time must be greater than 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if c.RetryDelay < 0 {
		return errors.New("retry delay cannot be negative")
	}
	return nil
}

// DSN returns the go-sqlite3 connection string for the configured path.
func (c *Config) DSN() string {
	return c.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

// Package database manages the PostgreSQL connection pools, schema
// readiness checks, and startup migrations.
package database

import (
	"fmt"
	"net/url"
	"time"
)

// Config defines what the database package needs. It deliberately
// imports nothing from the config package; the server maps the loaded
// configuration onto it at startup.
type Config struct {
	Driver     string
	DSN        string
	ReadDSN    string
	Host       string
	Port       int
	Database   string
	Username   string
	Password   string
	SSLMode    string
	SearchPath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration

	AutoMigrate          bool
	MigrationsPath       string
	FailOnMigrationError bool
	MigrationTimeout     time.Duration
}

// NewConfig creates config with sensible defaults
func NewConfig() Config {
	return Config{
		Driver:               "postgres",
		Host:                 "localhost",
		Port:                 5432,
		Database:             "easylaw",
		Username:             "postgres",
		SSLMode:              "disable",
		SearchPath:           "public",
		MaxOpenConns:         25,
		MaxIdleConns:         5,
		ConnMaxLifetime:      5 * time.Minute,
		ConnMaxIdleTime:      2 * time.Minute,
		ConnectTimeout:       10 * time.Second,
		AutoMigrate:          true,
		MigrationsPath:       "migrations/sql",
		FailOnMigrationError: true,
		MigrationTimeout:     time.Minute,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.DSN == "" {
		if c.Host == "" {
			return fmt.Errorf("database host is required when no DSN is set")
		}
		if c.Database == "" {
			return fmt.Errorf("database name is required when no DSN is set")
		}
	}
	return nil
}

// GetDSN returns the write connection string, assembling it from the
// individual fields when none was set directly.
func (c Config) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return c.buildPostgresDSN()
}

// GetReadDSN returns the replica connection string, falling back to the
// write DSN so single-node deployments need no extra configuration.
func (c Config) GetReadDSN() string {
	if c.ReadDSN != "" {
		return c.ReadDSN
	}
	return c.GetDSN()
}

func (c Config) buildPostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}

	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.SearchPath != "" {
		q.Set("search_path", c.SearchPath)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

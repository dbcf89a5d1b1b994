package config

import (
	"time"
)

// DatabaseConfig holds database configuration. Either DSN is set directly
// or it is assembled from the individual host/port/credential fields.
// ReadDSN points reads at a replica; when empty, reads share the write pool.
type DatabaseConfig struct {
	Driver               string        `yaml:"driver" mapstructure:"driver"`
	DSN                  string        `yaml:"dsn" mapstructure:"dsn"`
	ReadDSN              string        `yaml:"read_dsn" mapstructure:"read_dsn"`
	Host                 string        `yaml:"host" mapstructure:"host"`
	Port                 int           `yaml:"port" mapstructure:"port"`
	Username             string        `yaml:"username" mapstructure:"username"`
	Password             string        `yaml:"password" mapstructure:"password"`
	Database             string        `yaml:"database" mapstructure:"database"`
	SSLMode              string        `yaml:"ssl_mode" mapstructure:"sslmode"`
	SearchPath           string        `yaml:"search_path" mapstructure:"search_path"`
	MaxOpenConns         int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns         int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime      time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime      time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	QueryTimeout         time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
	AutoMigrate          bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
	MigrationsPath       string        `yaml:"migrations_path" mapstructure:"migrations_path"`
	FailOnMigrationError bool          `yaml:"fail_on_migration_error" mapstructure:"fail_on_migration_error"`
}

// GetDefaultDatabaseConfig returns default database configuration
func GetDefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:               "postgres",
		Host:                 "localhost",
		Port:                 5432,
		Database:             "easylaw",
		Username:             "postgres",
		Password:             "",
		SSLMode:              "disable",
		SearchPath:           "public",
		MaxOpenConns:         25,
		MaxIdleConns:         5,
		ConnMaxLifetime:      5 * time.Minute,
		ConnMaxIdleTime:      2 * time.Minute,
		QueryTimeout:         30 * time.Second,
		AutoMigrate:          true,
		MigrationsPath:       "migrations/sql",
		FailOnMigrationError: true,
	}
}

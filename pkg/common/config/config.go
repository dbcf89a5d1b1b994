// Package config loads the application configuration from a YAML file
// and EASYLAW_-prefixed environment variables, with ${VAR:-default}
// expansion inside config values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kingbora/easy-law-sub001/pkg/common/cache"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// APIConfig defines the API server configuration
type APIConfig struct {
	ListenAddress   string          `mapstructure:"listen_address"`
	BaseURL         string          `mapstructure:"base_url"`
	TLSCertFile     string          `mapstructure:"tls_cert_file"`
	TLSKeyFile      string          `mapstructure:"tls_key_file"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	EnableCORS      bool            `mapstructure:"enable_cors"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	EnableSwagger   bool            `mapstructure:"enable_swagger"`
	LogRequests     bool            `mapstructure:"log_requests"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Auth            AuthConfig      `mapstructure:"auth"`
}

// RateLimitConfig defines request rate limits for the API server
type RateLimitConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	GlobalRPS   int  `mapstructure:"global_rps"`
	GlobalBurst int  `mapstructure:"global_burst"`
	TenantRPS   int  `mapstructure:"tenant_rps"`
	TenantBurst int  `mapstructure:"tenant_burst"`
}

// AuthConfig defines authentication settings
type AuthConfig struct {
	RequireAuth   bool                      `mapstructure:"require_auth"`
	JWTSecret     string                    `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration             `mapstructure:"jwt_expiration"`
	APIKeyHeader  string                    `mapstructure:"api_key_header"`
	APIKeys       map[string]APIKeySettings `mapstructure:"api_keys"`
}

// APIKeySettings describes a statically configured API key
type APIKeySettings struct {
	TenantID string   `mapstructure:"tenant_id"`
	UserID   string   `mapstructure:"user_id"`
	Role     string   `mapstructure:"role"`
	Scopes   []string `mapstructure:"scopes"`
}

// Config holds the complete application configuration
type Config struct {
	API           APIConfig            `mapstructure:"api"`
	Cache         cache.RedisConfig    `mapstructure:"cache"`
	Database      DatabaseConfig       `mapstructure:"database"`
	Observability observability.Config `mapstructure:"observability"`
	Environment   string               `mapstructure:"environment"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configFile := os.Getenv("EASYLAW_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	// Environment variables prefixed with EASYLAW_ override file values,
	// e.g. EASYLAW_DATABASE_HOST overrides database.host.
	v.SetEnvPrefix("EASYLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common aliases used in container environments.
	_ = v.BindEnv("cache.address", "REDIS_ADDR")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")

	v.AllowEmptyEnv(true)

	// A missing config file is fine as long as defaults plus environment
	// variables cover everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	processEnvExpansion(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.API.Auth.RequireAuth && c.API.Auth.JWTSecret == "" && len(c.API.Auth.APIKeys) == 0 {
			return errors.New("production requires a JWT secret or at least one API key")
		}
	}
	return nil
}

// processEnvExpansion expands ${VAR} and ${VAR:-default} references in
// every string config value.
func processEnvExpansion(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if value == "" {
			continue
		}

		if strings.Contains(value, "${") && strings.Contains(value, "}") {
			expanded := expandEnvVars(value)
			if expanded != value {
				v.Set(key, expanded)
			}
		}
	}
}

// expandEnvVars expands environment variables in a string, supporting
// ${VAR} and ${VAR:-default} syntax.
func expandEnvVars(value string) string {
	result := value

	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varRef := result[start+2 : end]

		var envVar, defaultVal string
		if strings.Contains(varRef, ":-") {
			parts := strings.SplitN(varRef, ":-", 2)
			envVar = parts[0]
			defaultVal = parts[1]
		} else {
			envVar = varRef
		}

		envVal := os.Getenv(envVar)
		if envVal == "" {
			envVal = defaultVal
		}

		result = result[:start] + envVal + result[end+1:]
	}

	return result
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Environment (dev, staging, prod)
	v.SetDefault("environment", "dev")

	// API defaults
	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.base_url", "/api/v1")
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)
	v.SetDefault("api.shutdown_timeout", 30*time.Second)
	v.SetDefault("api.enable_cors", true)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.enable_swagger", true)
	v.SetDefault("api.log_requests", true)

	// TLS defaults (empty means no TLS)
	v.SetDefault("api.tls_cert_file", "")
	v.SetDefault("api.tls_key_file", "")

	// Rate limiting defaults
	v.SetDefault("api.rate_limit.enabled", true)
	v.SetDefault("api.rate_limit.global_rps", 1000)
	v.SetDefault("api.rate_limit.global_burst", 2000)
	v.SetDefault("api.rate_limit.tenant_rps", 100)
	v.SetDefault("api.rate_limit.tenant_burst", 200)

	// Auth defaults; secrets default to empty so they stay overridable
	// from the environment.
	v.SetDefault("api.auth.require_auth", true)
	v.SetDefault("api.auth.api_key_header", "X-API-Key")
	v.SetDefault("api.auth.jwt_expiration", 24*time.Hour)
	v.SetDefault("api.auth.jwt_secret", "")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.read_dsn", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "easylaw")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.search_path", "public")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 2*time.Minute)
	v.SetDefault("database.query_timeout", 30*time.Second)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrations_path", "migrations/sql")
	v.SetDefault("database.fail_on_migration_error", true)

	// Cache defaults
	v.SetDefault("cache.type", "redis")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.username", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.dial_timeout", 5*time.Second)
	v.SetDefault("cache.read_timeout", 3*time.Second)
	v.SetDefault("cache.write_timeout", 3*time.Second)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.min_idle_conns", 2)
	v.SetDefault("cache.pool_timeout", 4*time.Second)
	v.SetDefault("cache.local.enabled", false)
	v.SetDefault("cache.local.max_items", 1000)
	v.SetDefault("cache.local.ttl", 5*time.Minute)

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.namespace", "easylaw")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.service_name", "easylaw-api")
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "dev" || c.Environment == "development"
}

// IsStaging returns true if the environment is staging
func (c *Config) IsStaging() bool {
	return c.Environment == "staging" || c.Environment == "stage"
}

package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// scanBatchSize bounds how many keys a single SCAN/DEL round trip
// touches during pattern invalidation.
const scanBatchSize = 100

// RedisConfig holds configuration for Redis
type RedisConfig struct {
	Type         string        `mapstructure:"type"`           // "redis", "memory" or "none"
	Address      string        `mapstructure:"address"`        // Redis address
	Username     string        `mapstructure:"username"`       // Redis username
	Password     string        `mapstructure:"password"`       // Redis password
	Database     int           `mapstructure:"database"`       // Redis database number
	MaxRetries   int           `mapstructure:"max_retries"`    // Max retries on failure
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // Dial timeout
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // Read timeout
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // Write timeout
	PoolSize     int           `mapstructure:"pool_size"`      // Connection pool size
	MinIdleConns int           `mapstructure:"min_idle_conns"` // Min idle connections
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`   // Pool timeout

	// Local configures the in-process tier. For the "memory" type it is
	// the only tier; for "redis" it optionally fronts the shared cache.
	Local LocalConfig `mapstructure:"local"`

	// TLS configuration
	TLS *TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

func (c *TLSConfig) buildTLSConfig() *tls.Config {
	if c == nil || !c.Enabled {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisCache creates a new Redis cache and verifies connectivity
// before returning it.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	options := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if tlsConfig := cfg.TLS.buildTLSConfig(); tlsConfig != nil {
		options.TLSConfig = tlsConfig
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
		config: cfg,
	}, nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return err
	}

	return json.Unmarshal(data, value)
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeletePattern removes every key matching a Redis glob pattern. Keys
// are collected with SCAN so large keyspaces never block the server.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	keys := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatchSize {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Exists checks if a key exists in cache
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Flush clears all values in cache
func (c *RedisCache) Flush(ctx context.Context) error {
	return c.client.FlushAll(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

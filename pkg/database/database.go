package database

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// Import PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/kingbora/easy-law-sub001/pkg/database/migration"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// sanitizeDSN removes credentials from a DSN for safe logging.
func sanitizeDSN(dsn string) string {
	// key=value form
	if strings.Contains(dsn, "password=") {
		parts := strings.Split(dsn, " ")
		sanitized := make([]string, 0, len(parts))
		for _, part := range parts {
			if strings.HasPrefix(part, "password=") {
				sanitized = append(sanitized, "password=***")
			} else {
				sanitized = append(sanitized, part)
			}
		}
		return strings.Join(sanitized, " ")
	}

	// URL form: mask everything between :// and @
	if idx := strings.Index(dsn, "://"); idx != -1 {
		if atIdx := strings.Index(dsn[idx:], "@"); atIdx != -1 {
			return dsn[:idx+3] + "***:***" + dsn[idx+atIdx:]
		}
	}
	return dsn
}

// Database owns the write and read connection pools. When no replica
// DSN is configured both accessors return the same pool.
type Database struct {
	writeDB *sqlx.DB
	readDB  *sqlx.DB
	config  Config
	logger  observability.Logger
}

// NewDatabase opens the connection pools, verifies connectivity, and
// runs pending migrations when auto-migration is enabled.
func NewDatabase(ctx context.Context, cfg Config, logger observability.Logger) (*Database, error) {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writeDB, err := openPool(ctx, cfg, cfg.GetDSN(), logger, "write")
	if err != nil {
		return nil, err
	}

	readDB := writeDB
	if cfg.ReadDSN != "" {
		readDB, err = openPool(ctx, cfg, cfg.GetReadDSN(), logger, "read")
		if err != nil {
			_ = writeDB.Close()
			return nil, err
		}
	}

	db := &Database{
		writeDB: writeDB,
		readDB:  readDB,
		config:  cfg,
		logger:  logger,
	}

	if cfg.AutoMigrate {
		opts := migration.AutoMigrateOptions{
			Enabled:     true,
			Path:        cfg.MigrationsPath,
			FailOnError: cfg.FailOnMigrationError,
			Timeout:     cfg.MigrationTimeout,
			Logger:      logger,
		}
		if err := migration.AutoMigrate(ctx, writeDB, cfg.Driver, opts); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "auto-migration failed")
		}
	}

	return db, nil
}

// openPool opens one sqlx pool and verifies it answers a ping.
func openPool(ctx context.Context, cfg Config, dsn string, logger observability.Logger, role string) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s pool", role)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s database %s", role, sanitizeDSN(dsn))
	}

	logger.Info("Database pool ready", map[string]interface{}{
		"role":           role,
		"dsn":            sanitizeDSN(dsn),
		"max_open_conns": cfg.MaxOpenConns,
	})
	return db, nil
}

// WriteDB returns the pool used for writes and transactions.
func (d *Database) WriteDB() *sqlx.DB {
	return d.writeDB
}

// ReadDB returns the pool used for reads. It aliases the write pool
// when no replica is configured.
func (d *Database) ReadDB() *sqlx.DB {
	return d.readDB
}

// Ping verifies both pools are reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.writeDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "write pool ping failed")
	}
	if d.readDB != d.writeDB {
		if err := d.readDB.PingContext(ctx); err != nil {
			return errors.Wrap(err, "read pool ping failed")
		}
	}
	return nil
}

// Stats reports connection pool statistics for health endpoints.
func (d *Database) Stats() map[string]interface{} {
	s := d.writeDB.Stats()
	stats := map[string]interface{}{
		"open_connections": s.OpenConnections,
		"in_use":           s.InUse,
		"idle":             s.Idle,
		"wait_count":       s.WaitCount,
	}
	if d.readDB != d.writeDB {
		rs := d.readDB.Stats()
		stats["read_open_connections"] = rs.OpenConnections
		stats["read_in_use"] = rs.InUse
	}
	return stats
}

// Close closes both pools.
func (d *Database) Close() error {
	var firstErr error
	if err := d.writeDB.Close(); err != nil {
		firstErr = err
	}
	if d.readDB != d.writeDB {
		if err := d.readDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// AutoMigrateOptions contains options for automatic migration at startup
type AutoMigrateOptions struct {
	// Whether to automatically run migrations on startup
	Enabled bool

	// Path to migration files
	Path string

	// Whether to fail startup if migrations fail
	FailOnError bool

	// Timeout for migration operations
	Timeout time.Duration

	// Whether to validate migrations without applying them
	ValidateOnly bool

	// Logger to use for migration messages
	Logger observability.Logger
}

// DefaultOptions returns the default migration options
func DefaultOptions() AutoMigrateOptions {
	return AutoMigrateOptions{
		Enabled:      true,
		Path:         "migrations/sql",
		FailOnError:  true,
		Timeout:      1 * time.Minute,
		ValidateOnly: false,
	}
}

// AutoMigrate performs automatic database migration on startup
func AutoMigrate(ctx context.Context, db *sqlx.DB, driverName string, options AutoMigrateOptions) error {
	logger := options.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	if !options.Enabled {
		logger.Info("Automatic migrations disabled", nil)
		return nil
	}
	if options.Path == "" {
		options.Path = "migrations/sql"
	}
	if options.Timeout <= 0 {
		options.Timeout = 1 * time.Minute
	}

	logger.Info("Starting database migration", map[string]interface{}{
		"path": options.Path,
	})

	manager, err := NewManager(db, Config{
		MigrationsPath:   options.Path,
		MigrationTimeout: options.Timeout,
		ValidateOnly:     options.ValidateOnly,
	}, driverName, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration manager: %w", err)
	}

	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration manager: %w", err)
	}
	// The migrator holds its own connection from the pool; release it when
	// done. The pool itself stays open for the application.
	defer func() {
		if cerr := manager.Close(); cerr != nil {
			logger.Warn("Failed to close migrator", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}()

	version, dirty, err := manager.GetVersion()
	if err == nil {
		logger.Info("Current migration version", map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		})
	}

	if options.ValidateOnly {
		if err := manager.ValidateMigrations(ctx); err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		logger.Info("Migration validation succeeded", nil)
		return nil
	}

	startTime := time.Now()
	if err := manager.RunMigrations(ctx); err != nil {
		if options.FailOnError {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Warn("Continuing despite migration failure", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	newVersion, dirty, err := manager.GetVersion()
	if err != nil {
		logger.Warn("Failed to get migration version", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	if dirty {
		logger.Warn("Database is in dirty state", map[string]interface{}{
			"version": newVersion,
		})
	}
	logger.Info("Migrations completed", map[string]interface{}{
		"from_version": version,
		"to_version":   newVersion,
		"duration":     time.Since(startTime).String(),
	})

	return nil
}

// Package migration applies versioned SQL schema migrations using
// golang-migrate, with startup integration for the database layer.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// Config holds the migration configuration
type Config struct {
	// Path to migration files directory
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`

	// Timeout for migration operations
	MigrationTimeout time.Duration `json:"migration_timeout" yaml:"migration_timeout"`

	// Whether to validate migrations without applying them
	ValidateOnly bool `json:"validate_only" yaml:"validate_only"`

	// Use a specific number of steps for migration (0 means all)
	Steps int `json:"steps" yaml:"steps"`
}

// Manager handles database migrations
type Manager struct {
	db         *sqlx.DB
	config     Config
	migrator   *migrate.Migrate
	driverName string
	logger     observability.Logger
}

// NewManager creates a new migration manager
func NewManager(db *sqlx.DB, config Config, driverName string, logger observability.Logger) (*Manager, error) {
	if db == nil {
		return nil, errors.New("db connection cannot be nil")
	}
	if driverName != "postgres" {
		return nil, fmt.Errorf("unsupported migration driver %q", driverName)
	}

	if config.MigrationsPath == "" {
		config.MigrationsPath = "migrations/sql"
	}
	if config.MigrationTimeout == 0 {
		config.MigrationTimeout = 1 * time.Minute
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	return &Manager{
		db:         db,
		config:     config,
		driverName: driverName,
		logger:     logger,
	}, nil
}

// Init builds the migrator. It is called lazily by the operations so
// NewManager itself never touches the database.
func (m *Manager) Init(ctx context.Context) error {
	driver, err := postgres.WithInstance(m.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceURL := fmt.Sprintf("file://%s", m.config.MigrationsPath)

	migrator, err := migrate.NewWithDatabaseInstance(sourceURL, m.driverName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	m.migrator = migrator
	return nil
}

// RunMigrations applies all pending migrations, or config.Steps of them
// when set. Applying zero migrations is not an error.
func (m *Manager) RunMigrations(ctx context.Context) error {
	if m.migrator == nil {
		if err := m.Init(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.MigrationTimeout)
	defer cancel()

	// golang-migrate has no context support, so run it on a goroutine
	// and race it against the deadline.
	done := make(chan error, 1)
	go func() {
		var err error
		if m.config.Steps > 0 {
			err = m.migrator.Steps(m.config.Steps)
		} else {
			err = m.migrator.Up()
		}

		if err == migrate.ErrNoChange {
			m.logger.Info("No schema migrations to run", nil)
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("migration error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("migration timeout after %s", m.config.MigrationTimeout)
	}
}

// ValidateMigrations checks the schema version without applying anything.
// It fails when a previous migration left the schema dirty.
func (m *Manager) ValidateMigrations(ctx context.Context) error {
	if m.migrator == nil {
		if err := m.Init(ctx); err != nil {
			return err
		}
	}

	version, dirty, err := m.GetVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d", version)
	}

	m.logger.Debug("Schema version validated", map[string]interface{}{
		"version": version,
	})
	return nil
}

// Rollback rolls back the last applied migration
func (m *Manager) Rollback(ctx context.Context) error {
	if m.migrator == nil {
		if err := m.Init(ctx); err != nil {
			return err
		}
	}

	return m.migrator.Steps(-1)
}

// RollbackAll rolls back all migrations
func (m *Manager) RollbackAll(ctx context.Context) error {
	if m.migrator == nil {
		if err := m.Init(ctx); err != nil {
			return err
		}
	}

	err := m.migrator.Down()
	if err == migrate.ErrNoChange {
		m.logger.Info("No schema migrations to roll back", nil)
		return nil
	}
	return err
}

// GetVersion returns the current migration version and dirty state. A
// database with no applied migrations reports version 0.
func (m *Manager) GetVersion() (uint, bool, error) {
	if m.migrator == nil {
		if err := m.Init(context.Background()); err != nil {
			return 0, false, err
		}
	}

	version, dirty, err := m.migrator.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	return version, dirty, err
}

// ForceVersion forces the schema version marker, clearing a dirty state.
func (m *Manager) ForceVersion(version uint) error {
	if m.migrator == nil {
		if err := m.Init(context.Background()); err != nil {
			return err
		}
	}

	return m.migrator.Force(int(version))
}

// Close releases the migrator's source and database handles. The pool
// passed to NewManager stays open.
func (m *Manager) Close() error {
	if m.migrator == nil {
		return nil
	}

	sourceErr, databaseErr := m.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("source error: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("database error: %w", databaseErr)
	}
	return nil
}

package migration

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) *sqlx.DB {
	t.Helper()
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock")
}

func TestNewManager(t *testing.T) {
	db := newMockDB(t)

	config := Config{
		MigrationsPath:   "test/migrations",
		MigrationTimeout: 30 * time.Second,
	}

	manager, err := NewManager(db, config, "postgres", nil)
	require.NoError(t, err)
	assert.NotNil(t, manager)
	assert.Equal(t, config, manager.config)

	t.Run("nil db is rejected", func(t *testing.T) {
		_, err := NewManager(nil, config, "postgres", nil)
		assert.Error(t, err)
	})

	t.Run("unsupported driver is rejected", func(t *testing.T) {
		_, err := NewManager(db, config, "mysql", nil)
		assert.Error(t, err)
	})

	t.Run("empty migrations path falls back to default", func(t *testing.T) {
		manager, err := NewManager(db, Config{MigrationTimeout: 30 * time.Second}, "postgres", nil)
		require.NoError(t, err)
		assert.Equal(t, "migrations/sql", manager.config.MigrationsPath)
	})

	t.Run("zero timeout falls back to default", func(t *testing.T) {
		manager, err := NewManager(db, Config{MigrationsPath: "test/migrations"}, "postgres", nil)
		require.NoError(t, err)
		assert.Equal(t, 1*time.Minute, manager.config.MigrationTimeout)
	})
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Enabled)
	assert.Equal(t, "migrations/sql", opts.Path)
	assert.True(t, opts.FailOnError)
	assert.Equal(t, 1*time.Minute, opts.Timeout)
	assert.False(t, opts.ValidateOnly)
}

func TestAutoMigrateDisabled(t *testing.T) {
	db := newMockDB(t)

	// Disabled migration must not touch the database at all; sqlmock
	// would fail on any unexpected query.
	err := AutoMigrate(context.Background(), db, "postgres", AutoMigrateOptions{Enabled: false})
	assert.NoError(t, err)
}

func TestCloseWithoutInit(t *testing.T) {
	db := newMockDB(t)

	manager, err := NewManager(db, Config{}, "postgres", nil)
	require.NoError(t, err)
	assert.NoError(t, manager.Close())
}

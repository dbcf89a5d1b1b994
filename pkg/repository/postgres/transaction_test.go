package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingbora/easy-law-sub001/pkg/repository/types"
)

func TestBeginTransaction(t *testing.T) {
	t.Run("commit with statement timeout", func(t *testing.T) {
		repo, mock, _, _ := setupBaseRepository(t)
		ctx := context.Background()

		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL statement_timeout = \\$1").
			WithArgs(int64(5000)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		tx, err := repo.BeginTransaction(ctx, &types.TxOptions{
			Isolation: types.IsolationSerializable,
			Timeout:   5 * time.Second,
		})
		require.NoError(t, err)

		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		repo, mock, _, _ := setupBaseRepository(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := repo.BeginTransaction(context.Background(), nil)
		require.NoError(t, err)

		assert.NoError(t, tx.Rollback())
		// Rolling back twice is a no-op once the transaction is closed.
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransaction_Savepoints(t *testing.T) {
	repo, mock, _, _ := setupBaseRepository(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT before_journal").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := repo.BeginTransaction(ctx, nil)
	require.NoError(t, err)

	// Unnamed savepoints get sequential names.
	require.NoError(t, tx.Savepoint(ctx, ""))
	require.NoError(t, tx.Savepoint(ctx, "before_journal"))
	require.NoError(t, tx.RollbackToSavepoint(ctx, "sp_0"))

	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_ClosedGuards(t *testing.T) {
	repo, mock, _, _ := setupBaseRepository(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := repo.BeginTransaction(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Error(t, tx.Savepoint(ctx, "late"))
	assert.Error(t, tx.RollbackToSavepoint(ctx, "late"))
	assert.Error(t, tx.Execute(ctx, func(ctx context.Context) error { return nil }))
	assert.Error(t, tx.Commit())
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_Execute(t *testing.T) {
	repo, mock, _, _ := setupBaseRepository(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := repo.BeginTransaction(ctx, nil)
	require.NoError(t, err)

	called := false
	require.NoError(t, tx.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)

	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

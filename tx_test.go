package actum

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionDepthOne(t *testing.T) {
	s, mock := newMockSession(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.Begin(ctx))
	assert.Equal(t, 1, s.TxDepth())
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionNestedSavepoints(t *testing.T) {
	s, mock := newMockSession(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT trans_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT trans_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Begin(ctx)) // depth 1: BEGIN
	require.NoError(t, s.Begin(ctx)) // depth 2: SAVEPOINT trans_1
	require.NoError(t, s.Begin(ctx)) // depth 3: SAVEPOINT trans_2
	assert.Equal(t, 3, s.TxDepth())

	require.NoError(t, s.Rollback(ctx)) // back to trans_2
	assert.Equal(t, 2, s.TxDepth())
	require.NoError(t, s.Commit(ctx)) // release trans_1
	assert.Equal(t, 1, s.TxDepth())
	require.NoError(t, s.Commit(ctx)) // real COMMIT
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionOuterRollbackDiscardsInnerCommits(t *testing.T) {
	s, mock := newMockSession(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Commit(ctx))   // inner commit only releases the savepoint
	require.NoError(t, s.Rollback(ctx)) // outer rollback discards everything
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionNoTransaction(t *testing.T) {
	s, _ := newMockSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Commit(ctx), ErrNoTransaction)
	assert.ErrorIs(t, s.Rollback(ctx), ErrNoTransaction)
}

func TestTransactionBeginNotConfigured(t *testing.T) {
	t.Parallel()
	s := NewSession(nil)
	assert.ErrorIs(t, s.Begin(context.Background()), ErrNotConfigured)
}

func TestTransactionSavepointsNotLogged(t *testing.T) {
	s, mock := newMockSession(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Commit(ctx))

	// Transaction control statements are not application queries.
	assert.Equal(t, 0, s.Log().Count())
}

func TestTransactionHelperCommits(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `active` = ?").
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := s.Transaction(context.Background(), func(ctx context.Context) error {
		_, err := s.Exec(ctx, "UPDATE `users` SET `active` = ?", []any{true})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHelperRollsBackOnError(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Transaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHelperRollsBackOnPanic(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.Transaction(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, s.TxDepth())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHelperNested(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT trans_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.Transaction(context.Background(), func(ctx context.Context) error {
		inner := s.Transaction(ctx, func(ctx context.Context) error {
			return errors.New("inner failed")
		})
		// The inner failure only rolls back its savepoint; the outer
		// transaction can proceed and commit.
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

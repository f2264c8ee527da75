package actum

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/actum/dialect"
	"github.com/syssam/actum/dialect/sql"
)

// newMockSession opens a sqlmock-backed session for driver-level tests.
func newMockSession(t *testing.T, opts ...SessionOption) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s := NewSession(sql.OpenDB(dialect.MySQL, db), opts...)
	s.Log().SetSlowHook(nil)
	t.Cleanup(func() { db.Close() })
	return s, mock
}

func TestSessionSelect(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `id` = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Ann"))

	rows, err := s.Select(context.Background(), "SELECT * FROM `users` WHERE `id` = ?", []any{1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0]["name"])

	require.Equal(t, 1, s.Log().Count())
	entry := s.Log().Entries()[0]
	assert.Equal(t, "SELECT * FROM `users` WHERE `id` = ?", entry.Query)
	assert.Equal(t, []any{1}, entry.Bindings)
	assert.False(t, entry.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionSelectFailureLogged(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT * FROM `nope`").
		WillReturnError(errors.New("table not found"))

	rows, err := s.Select(context.Background(), "SELECT * FROM `nope`", []any{})
	require.Error(t, err)
	assert.Nil(t, rows)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "select", execErr.Op)

	require.Equal(t, 1, s.Log().Count())
	assert.True(t, s.Log().Entries()[0].Failed)
}

func TestSessionSelectNotConfigured(t *testing.T) {
	t.Parallel()
	s := NewSession(nil)
	_, err := s.Select(context.Background(), "SELECT 1", []any{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.Exec(context.Background(), "DELETE FROM `users`", []any{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSessionSelectCacheHitSkipsDriver(t *testing.T) {
	s, mock := newMockSession(t, WithQueryCache(16, time.Minute))
	query := "SELECT * FROM `users` WHERE `active` = ?"
	mock.ExpectQuery(query).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	first, err := s.Select(context.Background(), query, []any{true})
	require.NoError(t, err)

	// The second identical select is served from the cache. The mock
	// has no further expectations, so a driver round trip would fail.
	second, err := s.Select(context.Background(), query, []any{true})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Cache hits are not logged as executed statements.
	assert.Equal(t, 1, s.Log().Count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionSelectCacheBypassedInTransaction(t *testing.T) {
	s, mock := newMockSession(t, WithQueryCache(16, time.Minute))
	query := "SELECT * FROM `users`"
	rows := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"id"}).AddRow(int64(1)) }

	mock.ExpectQuery(query).WillReturnRows(rows())
	_, err := s.Select(context.Background(), query, []any{})
	require.NoError(t, err)

	mock.ExpectBegin()
	require.NoError(t, s.Begin(context.Background()))

	// Inside the transaction the cached entry is ignored and the
	// statement runs against the transaction connection.
	mock.ExpectQuery(query).WillReturnRows(rows())
	_, err = s.Select(context.Background(), query, []any{})
	require.NoError(t, err)

	mock.ExpectCommit()
	require.NoError(t, s.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionExec(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("UPDATE `users` SET `name` = ? WHERE `id` = ?").
		WithArgs("Annie", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := s.Exec(context.Background(), "UPDATE `users` SET `name` = ? WHERE `id` = ?", []any{"Annie", 1})
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, 1, s.Log().Count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionExecConstraintViolation(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("INSERT INTO `users` (`email`) VALUES (?)").
		WithArgs("ann@example.com").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@example.com' for key 'users.email'"})

	_, err := s.Exec(context.Background(), "INSERT INTO `users` (`email`) VALUES (?)", []any{"ann@example.com"})
	require.Error(t, err)

	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)

	var execErr *ExecError
	assert.ErrorAs(t, err, &execErr)

	require.Equal(t, 1, s.Log().Count())
	assert.True(t, s.Log().Entries()[0].Failed)
}

func TestSessionExecFailure(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("DELETE FROM `users`").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Exec(context.Background(), "DELETE FROM `users`", []any{})
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "exec", execErr.Op)

	var cerr *ConstraintError
	assert.False(t, errors.As(err, &cerr))
}

func TestSessionFlushCache(t *testing.T) {
	s, mock := newMockSession(t, WithQueryCache(16, time.Minute))
	query := "SELECT * FROM `users`"
	rows := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"id"}).AddRow(int64(1)) }

	mock.ExpectQuery(query).WillReturnRows(rows())
	_, err := s.Select(context.Background(), query, []any{})
	require.NoError(t, err)

	require.NoError(t, s.FlushCache(context.Background()))

	// After the flush the same select runs against the driver again.
	mock.ExpectQuery(query).WillReturnRows(rows())
	_, err = s.Select(context.Background(), query, []any{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionWithoutLogging(t *testing.T) {
	s, mock := newMockSession(t, WithoutLogging())
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	_, err := s.Select(context.Background(), "SELECT 1", []any{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Log().Count())
}

func TestSessionDialect(t *testing.T) {
	s, _ := newMockSession(t)
	assert.Equal(t, dialect.MySQL, s.Dialect())
	assert.Equal(t, "", NewSession(nil).Dialect())
}

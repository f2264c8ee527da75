package dialect

import (
	"context"
)

// Dialect names registered with the engine.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two basic statement operations.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// parameter must be a []any, and v, if non-nil, must be a pointer
	// to the driver-specific result type.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows. The args parameter
	// must be a []any, and v a pointer to the driver-specific rows type.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal SQL-execution contract the engine consumes.
// Implementations wrap a single active connection (or pool) and hand
// out transactions on demand.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction handle. It embeds ExecQuerier so statements
// issued through it run inside the transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// nopTx implements Tx with no-op Commit and Rollback.
type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx that executes statements through the given driver
// and ignores Commit and Rollback. Useful for drivers or tests that
// manage transaction boundaries externally.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

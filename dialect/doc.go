// Package dialect defines the database abstraction consumed by the
// actum engine.
//
// The engine never talks to database/sql directly. Every statement goes
// through the Driver interface, which wraps a single connection (or
// pool) and hands out transactions:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface adds Commit and Rollback on top of the same
// Exec/Query pair, so statements issued while a transaction is open run
// inside it.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.Postgres = "postgres"
//
// The dialect only affects parameter placeholder style during SQL
// compilation ($N for Postgres, ? otherwise) and driver error
// classification. No further SQL translation is performed.
//
// # Usage
//
//	import (
//	    "github.com/syssam/actum/dialect"
//	    "github.com/syssam/actum/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: query builders, the database/sql driver wrapper,
//     and driver error classification
package dialect

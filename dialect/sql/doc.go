// Package sql provides SQL statement builders and the database/sql
// driver wrapper used by the actum engine.
//
// # Builder Types
//
// The package provides one builder per statement kind:
//
//   - Selector: SELECT builder with predicates, ordering and pagination
//   - InsertBuilder: INSERT statement builder
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//
// A builder accumulates the query intent and compiles it exactly once
// via Query, returning the SQL text and the ordered binding list:
//
//	s := sql.NewSelector("users").
//	    Dialect(dialect.MySQL).
//	    Where("status", "active").
//	    WhereIn("role", "admin", "editor").
//	    OrderBy("id", "ASC").
//	    Limit(10)
//	query, args, err := s.Query()
//	// SELECT * FROM users WHERE status = ? AND role IN (?, ?)
//	// ORDER BY id ASC LIMIT 10
//
// Clause order is fixed: SELECT, FROM, WHERE, implicit soft-delete
// filter, ORDER BY, LIMIT, OFFSET. Bindings appear in fragment emission
// order; IN lists contribute one binding per value.
//
// # Identifier Safety
//
// Every identifier written into SQL text directly must match
// ^[a-zA-Z0-9_.]+$; anything else is rejected with InvalidColumnError
// instead of being interpolated. Values always travel as bindings.
//
// # Dialects
//
// The placeholder style follows the builder dialect: $N for Postgres,
// ? for MySQL and SQLite. No other translation is performed.
//
// # Driver Errors
//
// IsUniqueViolation, IsForeignKeyViolation and IsNotNullViolation
// classify errors reported by the mysql, pq and sqlite drivers so the
// engine can surface constraint failures as typed errors.
package sql

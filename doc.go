// Package actum is an active-record persistence engine: it maps
// in-memory entities to relational rows, compiles and executes SQL,
// tracks mutation state, manages nested transactions over savepoints,
// caches query results, and resolves relationships.
//
// # Sessions
//
// All state the engine mutates (the connection handle, the query log,
// the result cache and the transaction depth) is owned by an explicit
// Session, one per request or task. Sessions never share state
// implicitly:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session := actum.NewSession(drv)
//
// # Entities
//
// An entity type is declared once as a Meta: the table binding plus
// mass-assignment rules, casts, soft deletion and relations. Mutators,
// accessors and scopes are explicit per-field registrations, not
// naming conventions:
//
//	User := actum.NewMeta("User",
//	    actum.Fillable("name", "email"),
//	    actum.Hidden("password"),
//	    actum.Cast("settings", actum.CastJSON),
//	    actum.SoftDeletes(),
//	    actum.Scope("verified", func(q *actum.Query) *actum.Query {
//	        return q.WhereNotNull("verified_at")
//	    }),
//	    actum.HasMany("posts", Post),
//	)
//
//	user, err := User.Create(ctx, session, map[string]any{
//	    "name":  "Ann",
//	    "email": "a@x.com",
//	})
//
// # Queries
//
// Queries accumulate fluently and compile exactly once at a terminal
// method:
//
//	users, err := User.Query(session).
//	    Where("status", "active").
//	    WhereIn("role", "admin", "editor").
//	    OrderBy("created_at", "DESC").
//	    With("posts").
//	    Limit(10).
//	    Get(ctx)
//
// # Transactions
//
// Begin/Commit/Rollback nest: the outermost level maps onto a real
// transaction, inner levels onto savepoints, so an inner rollback
// undoes only its own work:
//
//	err := session.Transaction(ctx, func(ctx context.Context) error {
//	    if err := outer(ctx); err != nil {
//	        return err
//	    }
//	    return session.Transaction(ctx, inner)
//	})
//
// # Diagnostics
//
// The session records every statement in its query log. The diagnose
// sub-package analyzes a log window for N+1 patterns, excessive query
// counts and slow statements.
package actum

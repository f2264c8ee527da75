package actum

import (
	"context"

	"github.com/syssam/actum/dialect/sql"
)

// Query is a fluent SELECT intent over one entity type. It accumulates
// predicates, ordering and pagination until a terminal method compiles
// and executes it; the descriptor never outlives one logical query.
type Query struct {
	session     *Session
	meta        *Meta
	sel         *sql.Selector
	withs       []string
	withTrashed bool
	pageURL     string
	err         error
}

// Query starts a fluent query for the entity type on the session.
func (m *Meta) Query(s *Session) *Query {
	sel := sql.NewSelector(m.Table)
	if s != nil {
		sel.Dialect(s.Dialect())
	}
	if m.SoftDeletes {
		sel.SoftDelete(m.DeletedAtColumn)
	}
	return &Query{session: s, meta: m, sel: sel}
}

func (q *Query) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Select restricts the selected columns.
func (q *Query) Select(columns ...string) *Query {
	q.sel.Select(columns...)
	return q
}

// Where appends a basic comparison joined with AND. With one value
// argument the operator is =; with two, the first is the operator.
func (q *Query) Where(column string, args ...any) *Query {
	q.sel.Where(column, args...)
	return q
}

// OrWhere appends a basic comparison joined with OR.
func (q *Query) OrWhere(column string, args ...any) *Query {
	q.sel.OrWhere(column, args...)
	return q
}

// WhereIn appends an IN predicate joined with AND.
func (q *Query) WhereIn(column string, values ...any) *Query {
	q.sel.WhereIn(column, values...)
	return q
}

// WhereNotIn appends a NOT IN predicate joined with AND.
func (q *Query) WhereNotIn(column string, values ...any) *Query {
	q.sel.WhereNotIn(column, values...)
	return q
}

// WhereNull appends an IS NULL predicate joined with AND.
func (q *Query) WhereNull(column string) *Query {
	q.sel.WhereNull(column)
	return q
}

// WhereNotNull appends an IS NOT NULL predicate joined with AND.
func (q *Query) WhereNotNull(column string) *Query {
	q.sel.WhereNotNull(column)
	return q
}

// OrderBy appends a sort key. Repeated calls append additional keys.
func (q *Query) OrderBy(column, direction string) *Query {
	q.sel.OrderBy(column, direction)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.sel.Limit(n)
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.sel.Offset(n)
	return q
}

// WithTrashed includes soft-deleted rows in the results.
func (q *Query) WithTrashed() *Query {
	q.withTrashed = true
	q.sel.WithTrashed()
	return q
}

// OnlyTrashed restricts the results to soft-deleted rows.
func (q *Query) OnlyTrashed() *Query {
	q.WithTrashed()
	q.sel.WhereNotNull(q.meta.DeletedAtColumn)
	return q
}

// Scope applies the named scope registered on the Meta. An unknown
// name surfaces as UnknownScopeError from the terminal method.
func (q *Query) Scope(name string) *Query {
	fn, ok := q.meta.ScopeNamed(name)
	if !ok {
		q.setErr(&UnknownScopeError{Entity: q.meta.Name, Name: name})
		return q
	}
	return fn(q)
}

// With requests eager loading of the named relations. Each relation is
// resolved with one batched follow-up query after the base query runs
// and cached on every returned entity.
func (q *Query) With(names ...string) *Query {
	for _, name := range names {
		if _, ok := q.meta.RelationNamed(name); !ok {
			q.setErr(&UnknownRelationError{Entity: q.meta.Name, Name: name})
			continue
		}
		q.withs = append(q.withs, name)
	}
	return q
}

// Get compiles and executes the query, returning hydrated entities
// with any requested relations resolved.
func (q *Query) Get(ctx context.Context) ([]*Entity, error) {
	if q.err != nil {
		return nil, q.err
	}
	query, args, err := q.sel.Query()
	if err != nil {
		return nil, err
	}
	rows, err := q.session.Select(ctx, query, args)
	if err != nil {
		return nil, err
	}
	entities := make([]*Entity, len(rows))
	for i, row := range rows {
		entities[i] = q.meta.hydrate(q.session, row)
	}
	for _, name := range q.withs {
		if err := eagerLoad(ctx, q.session, q.meta, entities, name); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// First returns the first matching entity, or nil when none matches.
func (q *Query) First(ctx context.Context) (*Entity, error) {
	q.sel.Limit(1)
	entities, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// FirstOrFail returns the first matching entity or a NotFoundError.
func (q *Query) FirstOrFail(ctx context.Context) (*Entity, error) {
	e, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError(q.meta.Name)
	}
	return e, nil
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args, err := q.sel.Clone().Count("*").Query()
	if err != nil {
		return 0, err
	}
	rows, err := q.session.Select(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return castInt("aggregate", rows[0]["aggregate"])
}

// Exists reports whether any row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// Value returns a single column of the first matching row.
func (q *Query) Value(ctx context.Context, column string) (any, error) {
	e, err := q.Select(column).First(ctx)
	if err != nil || e == nil {
		return nil, err
	}
	return e.Get(column)
}

// Update applies the column changes to every matching row and returns
// the affected count. The set is applied as given, without the
// mass-assignment rules; timestamps are maintained when configured.
func (q *Query) Update(ctx context.Context, attrs map[string]any) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	b := q.sel.IntoUpdate()
	if q.meta.Timestamps {
		if _, ok := attrs[q.meta.UpdatedAtColumn]; !ok {
			b.Set(q.meta.UpdatedAtColumn, q.session.now())
		}
	}
	for _, k := range sortedKeys(attrs) {
		b.Set(k, attrs[k])
	}
	query, args, err := b.Query()
	if err != nil {
		return 0, err
	}
	res, err := q.session.exec(ctx, "update", query, args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes every matching row: a deleted-at stamp under soft
// deletes, a real DELETE otherwise. Returns the affected count.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if q.meta.SoftDeletes {
		b := q.sel.IntoUpdate().Set(q.meta.DeletedAtColumn, q.session.now())
		query, args, err := b.Query()
		if err != nil {
			return 0, err
		}
		res, err := q.session.exec(ctx, "delete", query, args)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	return q.ForceDelete(ctx)
}

// ForceDelete removes every matching row regardless of the soft-delete
// configuration, trashed rows included.
func (q *Query) ForceDelete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.sel.WithTrashed()
	query, args, err := q.sel.IntoDelete().Query()
	if err != nil {
		return 0, err
	}
	res, err := q.session.exec(ctx, "delete", query, args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Restore clears the deleted-at marker on every matching trashed row.
func (q *Query) Restore(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if !q.meta.SoftDeletes {
		return 0, nil
	}
	q.WithTrashed()
	b := q.sel.IntoUpdate().Set(q.meta.DeletedAtColumn, nil)
	query, args, err := b.Query()
	if err != nil {
		return 0, err
	}
	res, err := q.session.exec(ctx, "update", query, args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Create fills a new entity through the mass-assignment rules and
// saves it.
func (m *Meta) Create(ctx context.Context, s *Session, attrs map[string]any) (*Entity, error) {
	e := m.New(s)
	if err := e.Fill(attrs); err != nil {
		return nil, err
	}
	if err := e.Save(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Find returns the entity with the given primary key, or nil when it
// does not exist (or is soft-deleted).
func (m *Meta) Find(ctx context.Context, s *Session, id any) (*Entity, error) {
	return m.Query(s).Where(m.PrimaryKey, id).First(ctx)
}

// FindOrFail returns the entity with the given primary key or a
// NotFoundError carrying the key.
func (m *Meta) FindOrFail(ctx context.Context, s *Session, id any) (*Entity, error) {
	e, err := m.Find(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundErrorWithID(m.Name, id)
	}
	return e, nil
}

// All returns every visible entity of the type.
func (m *Meta) All(ctx context.Context, s *Session) ([]*Entity, error) {
	return m.Query(s).Get(ctx)
}

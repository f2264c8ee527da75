package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/actum/dialect"
)

// validColumnRe validates identifiers that are written into SQL text
// directly (column names, table names, aggregate targets).
var validColumnRe = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// InvalidColumnError is returned when an identifier fails the whitelist
// check. The identifier is never interpolated into SQL.
type InvalidColumnError struct {
	Column string
}

// Error returns the error string.
func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("dialect/sql: invalid column name %q", e.Column)
}

// IsInvalidColumn returns true if the error is an InvalidColumnError.
func IsInvalidColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidColumnError
	return errors.As(err, &e)
}

// ValidColumn reports whether s is safe to write into SQL text directly.
func ValidColumn(s string) bool {
	return s != "" && validColumnRe.MatchString(s)
}

// Comparison operators accepted by Where. Anything else is rejected at
// compile time so operators can never smuggle SQL into the statement.
var validOps = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true,
}

// predicate kinds. The kind controls both SQL emission and how many
// bindings the fragment contributes.
const (
	predBasic = iota
	predIn
	predNotIn
	predIsNull
	predNotNull
)

// predicate is one WHERE fragment. Combinator is the boolean keyword
// joining it to the previous fragment; the first emitted fragment drops
// its combinator.
type predicate struct {
	kind       int
	combinator string // "AND" or "OR"
	column     string
	op         string
	values     []any
}

// Builder is the base for all statement builders. It collects a
// deferred error so fluent chains stay unbroken; the first error
// surfaces from Query.
type Builder struct {
	dialect string
	err     error
}

// SetDialect sets the placeholder dialect.
func (b *Builder) SetDialect(d string) { b.dialect = d }

// Dialect returns the placeholder dialect.
func (b *Builder) Dialect() string { return b.dialect }

// Err returns the first error recorded while building.
func (b *Builder) Err() error { return b.err }

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) checkColumn(c string) bool {
	if !ValidColumn(c) {
		b.setErr(&InvalidColumnError{Column: c})
		return false
	}
	return true
}

// placeholder returns the parameter placeholder for the n-th binding
// (1-based). Postgres uses numbered placeholders; everything else uses ?.
func (b *Builder) placeholder(n int) string {
	if b.dialect == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// whereList accumulates predicates shared by SELECT, UPDATE and DELETE
// builders.
type whereList struct {
	preds []predicate
}

func (w *whereList) add(p predicate) { w.preds = append(w.preds, p) }

// empty reports whether no predicate has been added.
func (w *whereList) empty() bool { return len(w.preds) == 0 }

// compile writes the predicates into sb in insertion order. Fragment 0
// is emitted without its combinator; every later fragment is prefixed
// by its own. Bindings are appended to args in emission order.
func (w *whereList) compile(b *Builder, sb *strings.Builder, args *[]any) {
	for i, p := range w.preds {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(p.combinator)
			sb.WriteString(" ")
		}
		switch p.kind {
		case predBasic:
			*args = append(*args, p.values[0])
			fmt.Fprintf(sb, "%s %s %s", p.column, p.op, b.placeholder(len(*args)))
		case predIn, predNotIn:
			marks := make([]string, len(p.values))
			for j, v := range p.values {
				*args = append(*args, v)
				marks[j] = b.placeholder(len(*args))
			}
			kw := "IN"
			if p.kind == predNotIn {
				kw = "NOT IN"
			}
			fmt.Fprintf(sb, "%s %s (%s)", p.column, kw, strings.Join(marks, ", "))
		case predIsNull:
			fmt.Fprintf(sb, "%s IS NULL", p.column)
		case predNotNull:
			fmt.Fprintf(sb, "%s IS NOT NULL", p.column)
		}
	}
}

// order is one ORDER BY key.
type order struct {
	column    string
	direction string
}

// join is one INNER JOIN clause.
type join struct {
	table string
	left  string
	right string
}

// Selector is a SELECT statement builder. It accumulates the query
// intent and is discarded after compilation; it never outlives one
// logical query.
type Selector struct {
	Builder
	whereList
	table       string
	columns     []string
	aggregate   string
	joins       []join
	orders      []order
	limit       *int
	offset      *int
	softDelete  string // deleted-at column, empty when disabled
	withTrashed bool
}

// NewSelector returns a Selector for the given table.
func NewSelector(table string) *Selector {
	s := &Selector{table: table}
	s.checkColumn(table)
	return s
}

// Dialect sets the placeholder dialect and returns the selector.
func (s *Selector) Dialect(d string) *Selector {
	s.SetDialect(d)
	return s
}

// Select sets the selected columns. The default is *.
func (s *Selector) Select(columns ...string) *Selector {
	for _, c := range columns {
		if c == "*" {
			continue
		}
		if t, ok := strings.CutSuffix(c, ".*"); ok {
			s.checkColumn(t)
			continue
		}
		s.checkColumn(c)
	}
	s.columns = columns
	return s
}

// Join adds an inner join of table on left = right.
func (s *Selector) Join(table, left, right string) *Selector {
	if s.checkColumn(table) && s.checkColumn(left) && s.checkColumn(right) {
		s.joins = append(s.joins, join{table: table, left: left, right: right})
	}
	return s
}

// Where appends a basic comparison with combinator AND. With one
// argument the operator is =; with two the first argument is the
// operator and the second the value.
func (s *Selector) Where(column string, args ...any) *Selector {
	s.where("AND", column, args...)
	return s
}

// OrWhere appends a basic comparison with combinator OR.
func (s *Selector) OrWhere(column string, args ...any) *Selector {
	s.where("OR", column, args...)
	return s
}

func (s *Selector) where(combinator, column string, args ...any) {
	if !s.checkColumn(column) {
		return
	}
	op, value, err := splitOpValue(args)
	if err != nil {
		s.setErr(err)
		return
	}
	s.add(predicate{kind: predBasic, combinator: combinator, column: column, op: op, values: []any{value}})
}

// splitOpValue resolves the (operator?, value) argument pair.
func splitOpValue(args []any) (op string, value any, err error) {
	switch len(args) {
	case 1:
		return "=", args[0], nil
	case 2:
		op, ok := args[0].(string)
		if !ok || !validOps[strings.ToUpper(op)] {
			return "", nil, fmt.Errorf("dialect/sql: unsupported operator %v", args[0])
		}
		return strings.ToUpper(op), args[1], nil
	default:
		return "", nil, fmt.Errorf("dialect/sql: where expects 1 or 2 arguments, got %d", len(args))
	}
}

// WhereIn appends an IN predicate with combinator AND. Each value
// contributes one binding, in list order.
func (s *Selector) WhereIn(column string, values ...any) *Selector {
	if s.checkColumn(column) {
		s.add(predicate{kind: predIn, combinator: "AND", column: column, values: values})
	}
	return s
}

// WhereNotIn appends a NOT IN predicate with combinator AND.
func (s *Selector) WhereNotIn(column string, values ...any) *Selector {
	if s.checkColumn(column) {
		s.add(predicate{kind: predNotIn, combinator: "AND", column: column, values: values})
	}
	return s
}

// WhereNull appends an IS NULL predicate with combinator AND.
func (s *Selector) WhereNull(column string) *Selector {
	if s.checkColumn(column) {
		s.add(predicate{kind: predIsNull, combinator: "AND", column: column})
	}
	return s
}

// WhereNotNull appends an IS NOT NULL predicate with combinator AND.
func (s *Selector) WhereNotNull(column string) *Selector {
	if s.checkColumn(column) {
		s.add(predicate{kind: predNotNull, combinator: "AND", column: column})
	}
	return s
}

// OrderBy appends a sort key. Later calls append additional keys
// rather than replacing earlier ones.
func (s *Selector) OrderBy(column, direction string) *Selector {
	if !s.checkColumn(column) {
		return s
	}
	direction = strings.ToUpper(direction)
	if direction != "ASC" && direction != "DESC" {
		s.setErr(fmt.Errorf("dialect/sql: invalid order direction %q", direction))
		return s
	}
	s.orders = append(s.orders, order{column: column, direction: direction})
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// SoftDelete enables the implicit deleted-at filter for the given
// column. The filter is skipped when WithTrashed was called.
func (s *Selector) SoftDelete(column string) *Selector {
	if s.checkColumn(column) {
		s.softDelete = column
	}
	return s
}

// WithTrashed disables the implicit soft-delete filter.
func (s *Selector) WithTrashed() *Selector {
	s.withTrashed = true
	return s
}

// Count replaces the selection with COUNT over the given column.
func (s *Selector) Count(column string) *Selector {
	return s.setAggregate("COUNT", column)
}

// Max replaces the selection with MAX over the given column.
func (s *Selector) Max(column string) *Selector {
	return s.setAggregate("MAX", column)
}

// Min replaces the selection with MIN over the given column.
func (s *Selector) Min(column string) *Selector {
	return s.setAggregate("MIN", column)
}

// Sum replaces the selection with SUM over the given column.
func (s *Selector) Sum(column string) *Selector {
	return s.setAggregate("SUM", column)
}

// Avg replaces the selection with AVG over the given column.
func (s *Selector) Avg(column string) *Selector {
	return s.setAggregate("AVG", column)
}

func (s *Selector) setAggregate(fn, column string) *Selector {
	if column != "*" && !s.checkColumn(column) {
		return s
	}
	s.aggregate = fmt.Sprintf("%s(%s) AS aggregate", fn, column)
	return s
}

// IntoUpdate transfers the selector's table, dialect and predicates to
// an UpdateBuilder, carrying the implicit soft-delete filter along.
func (s *Selector) IntoUpdate() *UpdateBuilder {
	u := &UpdateBuilder{table: s.table}
	u.SetDialect(s.Builder.dialect)
	u.err = s.err
	u.preds = append([]predicate(nil), s.preds...)
	if s.softDelete != "" && !s.withTrashed {
		u.add(predicate{kind: predIsNull, combinator: "AND", column: s.softDelete})
	}
	return u
}

// IntoDelete transfers the selector's table, dialect and predicates to
// a DeleteBuilder, carrying the implicit soft-delete filter along.
func (s *Selector) IntoDelete() *DeleteBuilder {
	d := &DeleteBuilder{table: s.table}
	d.SetDialect(s.Builder.dialect)
	d.err = s.err
	d.preds = append([]predicate(nil), s.preds...)
	if s.softDelete != "" && !s.withTrashed {
		d.add(predicate{kind: predIsNull, combinator: "AND", column: s.softDelete})
	}
	return d
}

// Clone returns an independent copy of the selector, so a base query
// can branch (e.g. one arm for COUNT, one for rows) without the arms
// observing each other's mutations.
func (s *Selector) Clone() *Selector {
	c := *s
	c.preds = append([]predicate(nil), s.preds...)
	c.columns = append([]string(nil), s.columns...)
	c.joins = append([]join(nil), s.joins...)
	c.orders = append([]order(nil), s.orders...)
	if s.limit != nil {
		n := *s.limit
		c.limit = &n
	}
	if s.offset != nil {
		n := *s.offset
		c.offset = &n
	}
	return &c
}

// Query compiles the selector. The clause order is fixed: SELECT, FROM,
// WHERE, implicit soft-delete filter, ORDER BY, LIMIT, OFFSET. Binding
// order exactly matches fragment emission order.
func (s *Selector) Query() (string, []any, error) {
	if err := s.Err(); err != nil {
		return "", nil, err
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT ")
	switch {
	case s.aggregate != "":
		sb.WriteString(s.aggregate)
	case len(s.columns) > 0:
		sb.WriteString(strings.Join(s.columns, ", "))
	default:
		sb.WriteString("*")
	}
	sb.WriteString(" FROM ")
	sb.WriteString(s.table)
	for _, j := range s.joins {
		fmt.Fprintf(&sb, " JOIN %s ON %s = %s", j.table, j.left, j.right)
	}
	filterTrashed := s.softDelete != "" && !s.withTrashed
	if !s.empty() || filterTrashed {
		sb.WriteString(" WHERE ")
		s.compile(&s.Builder, &sb, &args)
		if filterTrashed {
			if !s.empty() {
				sb.WriteString(" AND ")
			}
			sb.WriteString(s.softDelete)
			sb.WriteString(" IS NULL")
		}
	}
	if len(s.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		parts := make([]string, len(s.orders))
		for i, o := range s.orders {
			parts[i] = o.column + " " + o.direction
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	if s.limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *s.limit)
	}
	if s.offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *s.offset)
	}
	return sb.String(), args, nil
}

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
}

// Insert returns an InsertBuilder for the given table.
func Insert(table string) *InsertBuilder {
	b := &InsertBuilder{table: table}
	b.checkColumn(table)
	return b
}

// Dialect sets the placeholder dialect and returns the builder.
func (b *InsertBuilder) Dialect(d string) *InsertBuilder {
	b.SetDialect(d)
	return b
}

// Set adds a column/value pair. Pairs compile in insertion order.
func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	if b.checkColumn(column) {
		b.columns = append(b.columns, column)
		b.values = append(b.values, value)
	}
	return b
}

// Query compiles the statement.
func (b *InsertBuilder) Query() (string, []any, error) {
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: insert into %s with no columns", b.table)
	}
	marks := make([]string, len(b.values))
	for i := range b.values {
		marks[i] = b.placeholder(i + 1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		b.table, strings.Join(b.columns, ", "), strings.Join(marks, ", "),
	)
	return query, append([]any(nil), b.values...), nil
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	Builder
	whereList
	table   string
	columns []string
	values  []any
}

// Update returns an UpdateBuilder for the given table.
func Update(table string) *UpdateBuilder {
	b := &UpdateBuilder{table: table}
	b.checkColumn(table)
	return b
}

// Dialect sets the placeholder dialect and returns the builder.
func (b *UpdateBuilder) Dialect(d string) *UpdateBuilder {
	b.SetDialect(d)
	return b
}

// Set adds a SET column/value pair. Pairs compile in insertion order.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	if b.checkColumn(column) {
		b.columns = append(b.columns, column)
		b.values = append(b.values, value)
	}
	return b
}

// Where appends a basic comparison with combinator AND.
func (b *UpdateBuilder) Where(column string, args ...any) *UpdateBuilder {
	if !b.checkColumn(column) {
		return b
	}
	op, value, err := splitOpValue(args)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.add(predicate{kind: predBasic, combinator: "AND", column: column, op: op, values: []any{value}})
	return b
}

// WhereIn appends an IN predicate with combinator AND.
func (b *UpdateBuilder) WhereIn(column string, values ...any) *UpdateBuilder {
	if b.checkColumn(column) {
		b.add(predicate{kind: predIn, combinator: "AND", column: column, values: values})
	}
	return b
}

// WhereNull appends an IS NULL predicate with combinator AND.
func (b *UpdateBuilder) WhereNull(column string) *UpdateBuilder {
	if b.checkColumn(column) {
		b.add(predicate{kind: predIsNull, combinator: "AND", column: column})
	}
	return b
}

// Query compiles the statement. SET bindings precede WHERE bindings.
func (b *UpdateBuilder) Query() (string, []any, error) {
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: update %s with no columns", b.table)
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	for i, c := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, b.values[i])
		fmt.Fprintf(&sb, "%s = %s", c, b.placeholder(len(args)))
	}
	if !b.empty() {
		sb.WriteString(" WHERE ")
		b.compile(&b.Builder, &sb, &args)
	}
	return sb.String(), args, nil
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	Builder
	whereList
	table string
}

// Delete returns a DeleteBuilder for the given table.
func Delete(table string) *DeleteBuilder {
	b := &DeleteBuilder{table: table}
	b.checkColumn(table)
	return b
}

// Dialect sets the placeholder dialect and returns the builder.
func (b *DeleteBuilder) Dialect(d string) *DeleteBuilder {
	b.SetDialect(d)
	return b
}

// Where appends a basic comparison with combinator AND.
func (b *DeleteBuilder) Where(column string, args ...any) *DeleteBuilder {
	if !b.checkColumn(column) {
		return b
	}
	op, value, err := splitOpValue(args)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.add(predicate{kind: predBasic, combinator: "AND", column: column, op: op, values: []any{value}})
	return b
}

// WhereIn appends an IN predicate with combinator AND.
func (b *DeleteBuilder) WhereIn(column string, values ...any) *DeleteBuilder {
	if b.checkColumn(column) {
		b.add(predicate{kind: predIn, combinator: "AND", column: column, values: values})
	}
	return b
}

// Query compiles the statement.
func (b *DeleteBuilder) Query() (string, []any, error) {
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	if !b.empty() {
		sb.WriteString(" WHERE ")
		b.compile(&b.Builder, &sb, &args)
	}
	return sb.String(), args, nil
}

package actum

import (
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// TransformFunc rewrites an attribute value on its way in (mutator) or
// out (accessor) of the attribute store.
type TransformFunc func(any) any

// ScopeFunc is a named, reusable query refinement registered on a Meta.
type ScopeFunc func(*Query) *Query

// RelationKind identifies the shape of an association.
type RelationKind uint8

// Supported relation kinds.
const (
	HasOneRelation RelationKind = iota
	HasManyRelation
	BelongsToRelation
	BelongsToManyRelation
)

// String returns the kind name.
func (k RelationKind) String() string {
	switch k {
	case HasOneRelation:
		return "has_one"
	case HasManyRelation:
		return "has_many"
	case BelongsToRelation:
		return "belongs_to"
	case BelongsToManyRelation:
		return "belongs_to_many"
	}
	return "unknown"
}

// Relation describes one association between two entity types.
type Relation struct {
	Kind   RelationKind
	Target *Meta

	// ForeignKey is the column on the related table (has-one/has-many)
	// or on the owning table (belongs-to) referencing the other side.
	ForeignKey string
	// LocalKey is the owning-side column the foreign key points at.
	LocalKey string
	// OwnerKey is the related-side key a belongs-to points at.
	OwnerKey string

	// Pivot fields apply to belongs-to-many only.
	Pivot           string
	PivotLocalKey   string // owner FK column on the pivot
	PivotRelatedKey string // related FK column on the pivot
}

// Meta is the declarative table binding for an entity type: table and
// primary-key names, mass-assignment rules, casts, soft-delete
// configuration, and the explicit registries for mutators, accessors,
// scopes and relations.
type Meta struct {
	// Name is the entity type name, e.g. "User". It drives the default
	// table name and relation naming conventions.
	Name string
	// Table is the bound table name. Defaults to the underscored
	// plural of Name.
	Table string
	// PrimaryKey is the primary-key column. Defaults to "id".
	PrimaryKey string

	// Fillable is the mass-assignment allow-list. When non-empty it
	// takes precedence over Guarded.
	Fillable []string
	// Guarded is the mass-assignment deny-list. The wildcard "*"
	// rejects every field when Fillable is empty.
	Guarded []string
	// Hidden fields are excluded from JSON serialization.
	Hidden []string
	// Casts maps field names to their declared read coercion.
	Casts map[string]CastType

	// SoftDeletes marks rows deleted via DeletedAtColumn instead of
	// removing them.
	SoftDeletes bool
	// DeletedAtColumn is the soft-delete marker column. Defaults to
	// "deleted_at".
	DeletedAtColumn string

	// Timestamps maintains CreatedAtColumn/UpdatedAtColumn on writes.
	Timestamps bool
	// CreatedAtColumn defaults to "created_at".
	CreatedAtColumn string
	// UpdatedAtColumn defaults to "updated_at".
	UpdatedAtColumn string

	mutators  map[string]TransformFunc
	accessors map[string]TransformFunc
	scopes    map[string]ScopeFunc
	relations map[string]*Relation
}

// MetaOption configures a Meta at construction time.
type MetaOption func(*Meta)

// NewMeta returns the Meta for an entity type named name. Defaults:
// table is the underscored plural of name, primary key is "id", and
// timestamps are maintained.
func NewMeta(name string, opts ...MetaOption) *Meta {
	m := &Meta{
		Name:            name,
		Table:           inflect.Pluralize(inflect.Underscore(name)),
		PrimaryKey:      "id",
		DeletedAtColumn: "deleted_at",
		Timestamps:      true,
		CreatedAtColumn: "created_at",
		UpdatedAtColumn: "updated_at",
		Casts:           map[string]CastType{},
		mutators:        map[string]TransformFunc{},
		accessors:       map[string]TransformFunc{},
		scopes:          map[string]ScopeFunc{},
		relations:       map[string]*Relation{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table overrides the bound table name.
func Table(name string) MetaOption {
	return func(m *Meta) { m.Table = name }
}

// PrimaryKey overrides the primary-key column.
func PrimaryKey(column string) MetaOption {
	return func(m *Meta) { m.PrimaryKey = column }
}

// Fillable sets the mass-assignment allow-list.
func Fillable(fields ...string) MetaOption {
	return func(m *Meta) { m.Fillable = fields }
}

// Guarded sets the mass-assignment deny-list.
func Guarded(fields ...string) MetaOption {
	return func(m *Meta) { m.Guarded = fields }
}

// Hidden excludes fields from JSON serialization.
func Hidden(fields ...string) MetaOption {
	return func(m *Meta) { m.Hidden = fields }
}

// Cast declares the read coercion for a field.
func Cast(field string, cast CastType) MetaOption {
	return func(m *Meta) { m.Casts[field] = cast }
}

// SoftDeletes enables soft deletion on the default "deleted_at" column.
func SoftDeletes() MetaOption {
	return func(m *Meta) { m.SoftDeletes = true }
}

// SoftDeletesOn enables soft deletion on a custom column.
func SoftDeletesOn(column string) MetaOption {
	return func(m *Meta) {
		m.SoftDeletes = true
		m.DeletedAtColumn = column
	}
}

// WithoutTimestamps disables created_at/updated_at maintenance.
func WithoutTimestamps() MetaOption {
	return func(m *Meta) { m.Timestamps = false }
}

// Mutator registers a write transform for a field. It replaces the
// convention-based setXAttribute discovery of classic active-record
// implementations with an explicit per-field table.
func Mutator(field string, fn TransformFunc) MetaOption {
	return func(m *Meta) { m.mutators[field] = fn }
}

// Accessor registers a read transform for a field. An accessor takes
// precedence over the declared cast.
func Accessor(field string, fn TransformFunc) MetaOption {
	return func(m *Meta) { m.accessors[field] = fn }
}

// Scope registers a named query refinement, resolved by explicit
// lookup from Query.Scope.
func Scope(name string, fn ScopeFunc) MetaOption {
	return func(m *Meta) { m.scopes[name] = fn }
}

// RelationOption customizes a relation definition.
type RelationOption func(*Relation)

// ForeignKey overrides the derived foreign-key column.
func ForeignKey(column string) RelationOption {
	return func(r *Relation) { r.ForeignKey = column }
}

// LocalKey overrides the owning-side key column.
func LocalKey(column string) RelationOption {
	return func(r *Relation) { r.LocalKey = column }
}

// OwnerKey overrides the related-side key a belongs-to points at.
func OwnerKey(column string) RelationOption {
	return func(r *Relation) { r.OwnerKey = column }
}

// Pivot overrides the derived pivot table and its two key columns.
func Pivot(table, localKey, relatedKey string) RelationOption {
	return func(r *Relation) {
		r.Pivot = table
		r.PivotLocalKey = localKey
		r.PivotRelatedKey = relatedKey
	}
}

// HasOne declares a one-to-one association: one row in the target
// table carries a foreign key referencing this entity.
func HasOne(name string, target *Meta, opts ...RelationOption) MetaOption {
	return relation(name, HasOneRelation, target, opts)
}

// HasMany declares a one-to-many association.
func HasMany(name string, target *Meta, opts ...RelationOption) MetaOption {
	return relation(name, HasManyRelation, target, opts)
}

// BelongsTo declares the inverse association: this entity carries a
// foreign key referencing one row in the target table.
func BelongsTo(name string, target *Meta, opts ...RelationOption) MetaOption {
	return relation(name, BelongsToRelation, target, opts)
}

// BelongsToMany declares a many-to-many association mediated by a
// pivot table. Absent an override, the pivot name is the two
// underscored type names joined in sorted order.
func BelongsToMany(name string, target *Meta, opts ...RelationOption) MetaOption {
	return relation(name, BelongsToManyRelation, target, opts)
}

func relation(name string, kind RelationKind, target *Meta, opts []RelationOption) MetaOption {
	return func(m *Meta) {
		r := &Relation{Kind: kind, Target: target}
		switch kind {
		case HasOneRelation, HasManyRelation:
			r.ForeignKey = foreignKeyFor(m.Name)
			r.LocalKey = m.PrimaryKey
		case BelongsToRelation:
			r.ForeignKey = foreignKeyFor(target.Name)
			r.OwnerKey = target.PrimaryKey
		case BelongsToManyRelation:
			r.Pivot = pivotTableFor(m.Name, target.Name)
			r.PivotLocalKey = foreignKeyFor(m.Name)
			r.PivotRelatedKey = foreignKeyFor(target.Name)
			r.LocalKey = m.PrimaryKey
			r.OwnerKey = target.PrimaryKey
		}
		for _, opt := range opts {
			opt(r)
		}
		m.relations[name] = r
	}
}

// foreignKeyFor derives the conventional foreign-key column for an
// entity type name: the underscored type name suffixed with _id.
func foreignKeyFor(typeName string) string {
	return inflect.Underscore(typeName) + "_id"
}

// pivotTableFor derives the conventional pivot table name: both type
// names lowercased and joined in sorted order with an underscore.
func pivotTableFor(a, b string) string {
	names := []string{inflect.Underscore(a), inflect.Underscore(b)}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// RelationNamed returns the relation definition registered under name.
func (m *Meta) RelationNamed(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// ScopeNamed returns the scope registered under name.
func (m *Meta) ScopeNamed(name string) (ScopeFunc, bool) {
	fn, ok := m.scopes[name]
	return fn, ok
}

// hiddenSet returns the hidden fields as a lookup set.
func (m *Meta) hiddenSet() map[string]struct{} {
	if len(m.Hidden) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(m.Hidden))
	for _, f := range m.Hidden {
		set[f] = struct{}{}
	}
	return set
}

// fillAllowed reports whether field may be written through mass
// assignment. The allow-list takes precedence when both lists are
// configured; the "*" wildcard in Guarded rejects everything when the
// allow-list is empty.
func (m *Meta) fillAllowed(field string) bool {
	if len(m.Fillable) > 0 {
		for _, f := range m.Fillable {
			if f == field {
				return true
			}
		}
		return false
	}
	for _, g := range m.Guarded {
		if g == "*" || g == field {
			return false
		}
	}
	return true
}

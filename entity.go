package actum

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/syssam/actum/dialect/sql"
)

// Entity is a single active record: the current attribute values, a
// snapshot of the values as loaded, the resolved-relation cache, and
// the existence flag.
type Entity struct {
	meta     *Meta
	session  *Session
	current  map[string]any
	original map[string]any
	loaded   map[string]any // relation name -> resolved result
	exists   bool
}

// New returns an empty, unsaved entity bound to the session.
func (m *Meta) New(s *Session) *Entity {
	return &Entity{
		meta:     m,
		session:  s,
		current:  map[string]any{},
		original: map[string]any{},
		loaded:   map[string]any{},
	}
}

// hydrate builds an entity from a raw row. The original snapshot is
// synced immediately, so a freshly loaded entity has no dirty fields.
func (m *Meta) hydrate(s *Session, row map[string]any) *Entity {
	e := m.New(s)
	for k, v := range row {
		e.current[k] = v
	}
	e.exists = true
	e.SyncOriginal()
	return e
}

// Meta returns the entity's table binding.
func (e *Entity) Meta() *Meta { return e.meta }

// Exists reports whether the entity is backed by a persisted row.
func (e *Entity) Exists() bool { return e.exists }

// Key returns the primary-key value, or nil when unset.
func (e *Entity) Key() any { return e.current[e.meta.PrimaryKey] }

// Set stores a field value. A registered mutator runs first; the
// transformed value is what the store keeps. Set bypasses the
// mass-assignment rules entirely.
func (e *Entity) Set(field string, value any) {
	if fn, ok := e.meta.mutators[field]; ok {
		value = fn(value)
	}
	e.current[field] = value
}

// Get returns a field value. A registered accessor takes precedence;
// otherwise the declared cast is applied.
func (e *Entity) Get(field string) (any, error) {
	v, ok := e.current[field]
	if fn, has := e.meta.accessors[field]; has {
		return fn(v), nil
	}
	if cast, has := e.meta.Casts[field]; has && ok {
		return applyCast(field, cast, v)
	}
	return v, nil
}

// MustGet is Get without the cast error. It returns the raw stored
// value when the cast fails.
func (e *Entity) MustGet(field string) any {
	v, err := e.Get(field)
	if err != nil {
		return e.current[field]
	}
	return v
}

// GetString returns the field cast to a string.
func (e *Entity) GetString(field string) string {
	v, err := e.Get(field)
	if err != nil || v == nil {
		return ""
	}
	return castString(v)
}

// GetInt returns the field cast to an int64.
func (e *Entity) GetInt(field string) int64 {
	v, err := e.Get(field)
	if err != nil || v == nil {
		return 0
	}
	n, err := castInt(field, v)
	if err != nil {
		return 0
	}
	return n
}

// GetTime returns the field cast to a time.Time.
func (e *Entity) GetTime(field string) time.Time {
	v, err := e.Get(field)
	if err != nil || v == nil {
		return time.Time{}
	}
	t, err := castDatetime(field, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// rawGet returns the stored value without accessor or cast.
func (e *Entity) rawGet(field string) any { return e.current[field] }

// Fill mass-assigns attributes through the fillable rules. Fields the
// rules reject are silently dropped; in strict mode they surface as a
// MassAssignmentError instead, with no field applied.
func (e *Entity) Fill(attrs map[string]any) error {
	var rejected []string
	for _, field := range sortedKeys(attrs) {
		if !e.meta.fillAllowed(field) {
			rejected = append(rejected, field)
		}
	}
	if len(rejected) > 0 && e.session != nil && e.session.strictFill {
		return &MassAssignmentError{Entity: e.meta.Name, Fields: rejected}
	}
	for _, field := range sortedKeys(attrs) {
		if e.meta.fillAllowed(field) {
			e.Set(field, attrs[field])
		}
	}
	return nil
}

// Dirty returns the fields whose current value differs from the
// original snapshot, or that have no original at all. Comparison is by
// value equality.
func (e *Entity) Dirty() map[string]any {
	dirty := map[string]any{}
	for k, v := range e.current {
		o, ok := e.original[k]
		if !ok || !reflect.DeepEqual(v, o) {
			dirty[k] = v
		}
	}
	return dirty
}

// IsDirty reports whether any of the given fields is dirty, or whether
// anything is dirty when called without arguments.
func (e *Entity) IsDirty(fields ...string) bool {
	dirty := e.Dirty()
	if len(fields) == 0 {
		return len(dirty) > 0
	}
	for _, f := range fields {
		if _, ok := dirty[f]; ok {
			return true
		}
	}
	return false
}

// SyncOriginal snapshots the current values as the original state.
// It runs exactly once per load/save cycle, immediately after a
// successful fetch or write.
func (e *Entity) SyncOriginal() {
	e.original = make(map[string]any, len(e.current))
	for k, v := range e.current {
		e.original[k] = v
	}
}

// Original returns the as-loaded value of a field.
func (e *Entity) Original(field string) any { return e.original[field] }

// Save persists the entity: INSERT when it has no backing row, UPDATE
// of the dirty fields otherwise. On success the original snapshot is
// re-synced, so Dirty is empty immediately after.
func (e *Entity) Save(ctx context.Context) error {
	s := e.session
	if s == nil || s.drv == nil {
		return ErrNotConfigured
	}
	if e.exists {
		return e.performUpdate(ctx)
	}
	return e.performInsert(ctx)
}

func (e *Entity) performInsert(ctx context.Context) error {
	s := e.session
	if e.meta.Timestamps {
		now := s.now()
		if _, ok := e.current[e.meta.CreatedAtColumn]; !ok {
			e.current[e.meta.CreatedAtColumn] = now
		}
		e.current[e.meta.UpdatedAtColumn] = now
	}
	b := sql.Insert(e.meta.Table).Dialect(s.Dialect())
	for _, k := range sortedKeys(e.current) {
		b.Set(k, e.current[k])
	}
	query, args, err := b.Query()
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, "insert", query, args)
	if err != nil {
		return err
	}
	if _, ok := e.current[e.meta.PrimaryKey]; !ok {
		if id, err := res.LastInsertId(); err == nil {
			e.current[e.meta.PrimaryKey] = id
		}
	}
	e.exists = true
	e.SyncOriginal()
	return nil
}

func (e *Entity) performUpdate(ctx context.Context) error {
	s := e.session
	dirty := e.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	if e.meta.Timestamps {
		e.current[e.meta.UpdatedAtColumn] = s.now()
		dirty[e.meta.UpdatedAtColumn] = e.current[e.meta.UpdatedAtColumn]
	}
	b := sql.Update(e.meta.Table).Dialect(s.Dialect())
	for _, k := range sortedKeys(dirty) {
		b.Set(k, dirty[k])
	}
	b.Where(e.meta.PrimaryKey, e.Key())
	query, args, err := b.Query()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, "update", query, args); err != nil {
		return err
	}
	e.SyncOriginal()
	return nil
}

// Update mass-assigns the given attributes and saves.
func (e *Entity) Update(ctx context.Context, attrs map[string]any) error {
	if err := e.Fill(attrs); err != nil {
		return err
	}
	return e.Save(ctx)
}

// Delete removes the entity. With soft deletes enabled it stamps the
// deleted-at column and the row stays logically alive but filtered from
// default queries; otherwise the row is removed and the existence flag
// drops.
func (e *Entity) Delete(ctx context.Context) error {
	if e.session == nil || e.session.drv == nil {
		return ErrNotConfigured
	}
	if !e.exists {
		return nil
	}
	if e.meta.SoftDeletes {
		e.Set(e.meta.DeletedAtColumn, e.session.now())
		return e.Save(ctx)
	}
	return e.ForceDelete(ctx)
}

// ForceDelete removes the backing row regardless of the soft-delete
// configuration.
func (e *Entity) ForceDelete(ctx context.Context) error {
	s := e.session
	if s == nil || s.drv == nil {
		return ErrNotConfigured
	}
	query, args, err := sql.Delete(e.meta.Table).
		Dialect(s.Dialect()).
		Where(e.meta.PrimaryKey, e.Key()).
		Query()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, "delete", query, args); err != nil {
		return err
	}
	e.exists = false
	return nil
}

// Trashed reports whether the entity carries a soft-delete marker.
func (e *Entity) Trashed() bool {
	if !e.meta.SoftDeletes {
		return false
	}
	return e.current[e.meta.DeletedAtColumn] != nil
}

// Restore clears the soft-delete marker and saves.
func (e *Entity) Restore(ctx context.Context) error {
	if !e.meta.SoftDeletes {
		return nil
	}
	e.Set(e.meta.DeletedAtColumn, nil)
	return e.Save(ctx)
}

// Fresh re-fetches the entity from the database, bypassing any cache of
// resolved relations.
func (e *Entity) Fresh(ctx context.Context) (*Entity, error) {
	return e.meta.Query(e.session).WithTrashed().Where(e.meta.PrimaryKey, e.Key()).First(ctx)
}

// MarshalJSON serializes the visible attributes plus any loaded
// relations. Hidden fields are excluded.
func (e *Entity) MarshalJSON() ([]byte, error) {
	hidden := e.meta.hiddenSet()
	out := make(map[string]any, len(e.current)+len(e.loaded))
	for _, k := range sortedKeys(e.current) {
		if _, skip := hidden[k]; skip {
			continue
		}
		v, err := e.Get(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	for name, rel := range e.loaded {
		out[name] = rel
	}
	return json.Marshal(out)
}

// sortedKeys returns the map keys in lexical order so compiled SQL is
// deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package actum

import (
	"context"

	"github.com/syssam/actum/dialect/sql"
)

// Related resolves the named relation for this entity, issuing a
// follow-up query on first access and serving the cached result on
// every later one. Has-one and belongs-to resolve to *Entity (nil when
// absent); has-many and belongs-to-many resolve to []*Entity.
func (e *Entity) Related(ctx context.Context, name string) (any, error) {
	if v, ok := e.loaded[name]; ok {
		return v, nil
	}
	r, ok := e.meta.RelationNamed(name)
	if !ok {
		return nil, &UnknownRelationError{Entity: e.meta.Name, Name: name}
	}
	v, err := e.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	e.loaded[name] = v
	return v, nil
}

// RelatedOne is Related for single-valued relations.
func (e *Entity) RelatedOne(ctx context.Context, name string) (*Entity, error) {
	v, err := e.Related(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	one, _ := v.(*Entity)
	return one, nil
}

// RelatedMany is Related for multi-valued relations.
func (e *Entity) RelatedMany(ctx context.Context, name string) ([]*Entity, error) {
	v, err := e.Related(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	many, _ := v.([]*Entity)
	return many, nil
}

// SetRelation stores a resolved relation result, so later access skips
// the query.
func (e *Entity) SetRelation(name string, v any) { e.loaded[name] = v }

// RelationLoaded reports whether the named relation has been resolved.
func (e *Entity) RelationLoaded(name string) bool {
	_, ok := e.loaded[name]
	return ok
}

func (e *Entity) resolve(ctx context.Context, r *Relation) (any, error) {
	s := e.session
	switch r.Kind {
	case HasOneRelation:
		return r.Target.Query(s).Where(r.ForeignKey, e.rawGet(r.LocalKey)).First(ctx)
	case HasManyRelation:
		return r.Target.Query(s).Where(r.ForeignKey, e.rawGet(r.LocalKey)).Get(ctx)
	case BelongsToRelation:
		fk := e.rawGet(r.ForeignKey)
		if fk == nil {
			return (*Entity)(nil), nil
		}
		return r.Target.Query(s).Where(r.OwnerKey, fk).First(ctx)
	case BelongsToManyRelation:
		q := r.Target.Query(s).Select(r.Target.Table + ".*")
		q.sel.Join(r.Pivot, r.Pivot+"."+r.PivotRelatedKey, r.Target.Table+"."+r.OwnerKey)
		return q.Where(r.Pivot+"."+r.PivotLocalKey, e.rawGet(r.LocalKey)).Get(ctx)
	}
	return nil, &UnknownRelationError{Entity: e.meta.Name, Name: r.Kind.String()}
}

// eagerLoad resolves one relation for a batch of entities with a
// single IN query (plus a pivot query for many-to-many), then caches
// the bucketed results on every entity. This is a batch convenience,
// not a join: relations accessed without being requested here still
// query lazily, one entity at a time.
func eagerLoad(ctx context.Context, s *Session, m *Meta, entities []*Entity, name string) error {
	if len(entities) == 0 {
		return nil
	}
	r, ok := m.RelationNamed(name)
	if !ok {
		return &UnknownRelationError{Entity: m.Name, Name: name}
	}
	switch r.Kind {
	case HasOneRelation, HasManyRelation:
		return eagerLoadHas(ctx, s, entities, name, r)
	case BelongsToRelation:
		return eagerLoadBelongsTo(ctx, s, entities, name, r)
	case BelongsToManyRelation:
		return eagerLoadBelongsToMany(ctx, s, entities, name, r)
	}
	return nil
}

func eagerLoadHas(ctx context.Context, s *Session, entities []*Entity, name string, r *Relation) error {
	keys := collectKeys(entities, r.LocalKey)
	if len(keys) == 0 {
		return assignEmpty(entities, name, r)
	}
	related, err := r.Target.Query(s).WhereIn(r.ForeignKey, keys...).Get(ctx)
	if err != nil {
		return err
	}
	groups := map[any][]*Entity{}
	for _, rel := range related {
		k := normalizeKey(rel.rawGet(r.ForeignKey))
		groups[k] = append(groups[k], rel)
	}
	for _, owner := range entities {
		bucket := groups[normalizeKey(owner.rawGet(r.LocalKey))]
		if r.Kind == HasOneRelation {
			if len(bucket) > 0 {
				owner.SetRelation(name, bucket[0])
			} else {
				owner.SetRelation(name, (*Entity)(nil))
			}
			continue
		}
		if bucket == nil {
			bucket = []*Entity{}
		}
		owner.SetRelation(name, bucket)
	}
	return nil
}

func eagerLoadBelongsTo(ctx context.Context, s *Session, entities []*Entity, name string, r *Relation) error {
	keys := collectKeys(entities, r.ForeignKey)
	if len(keys) == 0 {
		return assignEmpty(entities, name, r)
	}
	related, err := r.Target.Query(s).WhereIn(r.OwnerKey, keys...).Get(ctx)
	if err != nil {
		return err
	}
	index := map[any]*Entity{}
	for _, rel := range related {
		index[normalizeKey(rel.rawGet(r.OwnerKey))] = rel
	}
	for _, owner := range entities {
		rel, ok := index[normalizeKey(owner.rawGet(r.ForeignKey))]
		if !ok {
			owner.SetRelation(name, (*Entity)(nil))
			continue
		}
		owner.SetRelation(name, rel)
	}
	return nil
}

func eagerLoadBelongsToMany(ctx context.Context, s *Session, entities []*Entity, name string, r *Relation) error {
	keys := collectKeys(entities, r.LocalKey)
	if len(keys) == 0 {
		return assignEmpty(entities, name, r)
	}
	query, args, err := sql.NewSelector(r.Pivot).
		Dialect(s.Dialect()).
		WhereIn(r.PivotLocalKey, keys...).
		Query()
	if err != nil {
		return err
	}
	pivotRows, err := s.Select(ctx, query, args)
	if err != nil {
		return err
	}
	var relatedKeys []any
	seen := map[any]struct{}{}
	for _, row := range pivotRows {
		k := normalizeKey(row[r.PivotRelatedKey])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		relatedKeys = append(relatedKeys, row[r.PivotRelatedKey])
	}
	index := map[any]*Entity{}
	if len(relatedKeys) > 0 {
		related, err := r.Target.Query(s).WhereIn(r.OwnerKey, relatedKeys...).Get(ctx)
		if err != nil {
			return err
		}
		for _, rel := range related {
			index[normalizeKey(rel.rawGet(r.OwnerKey))] = rel
		}
	}
	buckets := map[any][]*Entity{}
	for _, row := range pivotRows {
		owner := normalizeKey(row[r.PivotLocalKey])
		if rel, ok := index[normalizeKey(row[r.PivotRelatedKey])]; ok {
			buckets[owner] = append(buckets[owner], rel)
		}
	}
	for _, owner := range entities {
		bucket := buckets[normalizeKey(owner.rawGet(r.LocalKey))]
		if bucket == nil {
			bucket = []*Entity{}
		}
		owner.SetRelation(name, bucket)
	}
	return nil
}

// assignEmpty caches an empty result on every entity so access never
// falls back to lazy per-entity queries.
func assignEmpty(entities []*Entity, name string, r *Relation) error {
	for _, owner := range entities {
		switch r.Kind {
		case HasOneRelation, BelongsToRelation:
			owner.SetRelation(name, (*Entity)(nil))
		default:
			owner.SetRelation(name, []*Entity{})
		}
	}
	return nil
}

// collectKeys returns the distinct non-nil values of field across the
// batch, in first-seen order.
func collectKeys(entities []*Entity, field string) []any {
	var keys []any
	seen := map[any]struct{}{}
	for _, e := range entities {
		v := e.rawGet(field)
		if v == nil {
			continue
		}
		k := normalizeKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// normalizeKey folds the integer and byte-string representations a
// driver may return into canonical comparison keys, so grouping works
// across in-memory and scanned values.
func normalizeKey(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	default:
		return v
	}
}

package actum

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAppliesMutator(t *testing.T) {
	t.Parallel()

	m := NewMeta("User",
		Mutator("email", func(v any) any {
			return strings.ToLower(v.(string))
		}),
	)
	e := m.New(nil)
	e.Set("email", "Ann@X.COM")
	assert.Equal(t, "ann@x.com", e.rawGet("email"))
}

func TestGetAppliesAccessorOverCast(t *testing.T) {
	t.Parallel()

	m := NewMeta("User",
		Cast("name", CastString),
		Accessor("name", func(v any) any {
			return strings.ToUpper(v.(string))
		}),
	)
	e := m.New(nil)
	e.Set("name", "ann")
	got, err := e.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "ANN", got)
}

func TestGetAppliesCast(t *testing.T) {
	t.Parallel()

	m := NewMeta("User", Cast("age", CastInt), Cast("tags", CastJSON))
	e := m.New(nil)
	e.Set("age", "30")
	e.Set("tags", `["go","sql"]`)

	age, err := e.Get("age")
	require.NoError(t, err)
	assert.Equal(t, int64(30), age)

	tags, err := e.Get("tags")
	require.NoError(t, err)
	assert.Equal(t, []any{"go", "sql"}, tags)
}

func TestDirtyTracking(t *testing.T) {
	t.Parallel()

	m := NewMeta("User")
	e := m.hydrate(nil, map[string]any{"id": int64(1), "name": "Ann"})

	// Freshly loaded: nothing dirty.
	assert.Empty(t, e.Dirty())
	assert.False(t, e.IsDirty())

	// Mutating one field dirties exactly that field.
	e.Set("name", "Annie")
	dirty := e.Dirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, "Annie", dirty["name"])
	assert.True(t, e.IsDirty("name"))
	assert.False(t, e.IsDirty("id"))

	// Setting a value equal to the original is not dirty.
	e.Set("name", "Ann")
	assert.Empty(t, e.Dirty())

	// A field absent from the original snapshot is dirty.
	e.Set("email", "a@x.com")
	assert.True(t, e.IsDirty("email"))

	e.SyncOriginal()
	assert.Empty(t, e.Dirty())
}

func TestFillSilentlyDropsGuarded(t *testing.T) {
	t.Parallel()

	m := NewMeta("User", Fillable("name", "email"))
	e := m.New(nil)
	err := e.Fill(map[string]any{
		"name":     "Ann",
		"email":    "a@x.com",
		"is_admin": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", e.rawGet("name"))
	assert.Equal(t, "a@x.com", e.rawGet("email"))
	_, present := e.current["is_admin"]
	assert.False(t, present, "non-fillable field must be silently dropped")
}

func TestFillStrictMode(t *testing.T) {
	t.Parallel()

	m := NewMeta("User", Fillable("name"))
	s := NewSession(nil, WithStrictFill())
	e := m.New(s)
	err := e.Fill(map[string]any{"name": "Ann", "is_admin": true})
	require.Error(t, err)
	assert.True(t, IsMassAssignment(err))
	// Nothing is applied on rejection.
	_, present := e.current["name"]
	assert.False(t, present)
}

func TestFillAppliesMutators(t *testing.T) {
	t.Parallel()

	m := NewMeta("User",
		Fillable("email"),
		Mutator("email", func(v any) any { return strings.ToLower(v.(string)) }),
	)
	e := m.New(nil)
	require.NoError(t, e.Fill(map[string]any{"email": "A@X.COM"}))
	assert.Equal(t, "a@x.com", e.rawGet("email"))
}

func TestDirectSetBypassesFillRules(t *testing.T) {
	t.Parallel()

	m := NewMeta("User", Guarded("*"))
	e := m.New(nil)
	e.Set("is_admin", true)
	assert.Equal(t, true, e.rawGet("is_admin"))
}

func TestHydrateSetsExistence(t *testing.T) {
	t.Parallel()

	m := NewMeta("User")
	e := m.hydrate(nil, map[string]any{"id": int64(7), "name": "Ann"})
	assert.True(t, e.Exists())
	assert.Equal(t, int64(7), e.Key())
	assert.Equal(t, "Ann", e.Original("name"))
}

func TestTrashed(t *testing.T) {
	t.Parallel()

	m := NewMeta("Post", SoftDeletes())
	e := m.hydrate(nil, map[string]any{"id": int64(1), "deleted_at": nil})
	assert.False(t, e.Trashed())
	e.Set("deleted_at", "2026-01-01 00:00:00")
	assert.True(t, e.Trashed())
}

func TestMarshalJSONHidesFields(t *testing.T) {
	t.Parallel()

	m := NewMeta("User", Hidden("password"))
	e := m.hydrate(nil, map[string]any{
		"id":       int64(1),
		"name":     "Ann",
		"password": "secret",
	})
	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Ann", out["name"])
	_, present := out["password"]
	assert.False(t, present)
}

func TestMarshalJSONIncludesLoadedRelations(t *testing.T) {
	t.Parallel()

	Post := NewMeta("Post")
	User := NewMeta("User", HasMany("posts", Post))
	e := User.hydrate(nil, map[string]any{"id": int64(1)})
	e.SetRelation("posts", []*Entity{
		Post.hydrate(nil, map[string]any{"id": int64(2), "title": "hi"}),
	})
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title":"hi"`)
}

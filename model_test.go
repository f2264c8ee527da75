package actum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaDefaults(t *testing.T) {
	t.Parallel()

	m := NewMeta("User")
	assert.Equal(t, "users", m.Table)
	assert.Equal(t, "id", m.PrimaryKey)
	assert.Equal(t, "deleted_at", m.DeletedAtColumn)
	assert.True(t, m.Timestamps)
	assert.False(t, m.SoftDeletes)

	m = NewMeta("BlogPost")
	assert.Equal(t, "blog_posts", m.Table)
}

func TestMetaOptions(t *testing.T) {
	t.Parallel()

	m := NewMeta("User",
		Table("accounts"),
		PrimaryKey("uid"),
		SoftDeletesOn("removed_at"),
		WithoutTimestamps(),
	)
	assert.Equal(t, "accounts", m.Table)
	assert.Equal(t, "uid", m.PrimaryKey)
	assert.True(t, m.SoftDeletes)
	assert.Equal(t, "removed_at", m.DeletedAtColumn)
	assert.False(t, m.Timestamps)
}

func TestForeignKeyConvention(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user_id", foreignKeyFor("User"))
	assert.Equal(t, "blog_post_id", foreignKeyFor("BlogPost"))
}

func TestPivotTableConvention(t *testing.T) {
	t.Parallel()

	// Both type names lowercased, joined in sorted order.
	assert.Equal(t, "role_user", pivotTableFor("User", "Role"))
	assert.Equal(t, "role_user", pivotTableFor("Role", "User"))
	assert.Equal(t, "post_tag", pivotTableFor("Post", "Tag"))
}

func TestRelationDefaults(t *testing.T) {
	t.Parallel()

	Post := NewMeta("Post")
	Profile := NewMeta("Profile")
	Role := NewMeta("Role")
	User := NewMeta("User",
		HasMany("posts", Post),
		HasOne("profile", Profile),
		BelongsToMany("roles", Role),
	)

	posts, ok := User.RelationNamed("posts")
	require.True(t, ok)
	assert.Equal(t, HasManyRelation, posts.Kind)
	assert.Equal(t, "user_id", posts.ForeignKey)
	assert.Equal(t, "id", posts.LocalKey)

	profile, ok := User.RelationNamed("profile")
	require.True(t, ok)
	assert.Equal(t, HasOneRelation, profile.Kind)
	assert.Equal(t, "user_id", profile.ForeignKey)

	roles, ok := User.RelationNamed("roles")
	require.True(t, ok)
	assert.Equal(t, BelongsToManyRelation, roles.Kind)
	assert.Equal(t, "role_user", roles.Pivot)
	assert.Equal(t, "user_id", roles.PivotLocalKey)
	assert.Equal(t, "role_id", roles.PivotRelatedKey)

	Comment := NewMeta("Comment", BelongsTo("post", Post))
	post, ok := Comment.RelationNamed("post")
	require.True(t, ok)
	assert.Equal(t, BelongsToRelation, post.Kind)
	assert.Equal(t, "post_id", post.ForeignKey)
	assert.Equal(t, "id", post.OwnerKey)
}

func TestRelationOverrides(t *testing.T) {
	t.Parallel()

	Role := NewMeta("Role")
	User := NewMeta("User",
		BelongsToMany("roles", Role, Pivot("memberships", "member_id", "grant_id")),
	)
	r, ok := User.RelationNamed("roles")
	require.True(t, ok)
	assert.Equal(t, "memberships", r.Pivot)
	assert.Equal(t, "member_id", r.PivotLocalKey)
	assert.Equal(t, "grant_id", r.PivotRelatedKey)
}

func TestFillAllowed(t *testing.T) {
	t.Parallel()

	// Allow-list only.
	m := NewMeta("User", Fillable("name", "email"))
	assert.True(t, m.fillAllowed("name"))
	assert.False(t, m.fillAllowed("is_admin"))

	// Wildcard deny-list with empty allow-list rejects everything.
	m = NewMeta("User", Guarded("*"))
	assert.False(t, m.fillAllowed("name"))

	// The allow-list takes precedence when both are configured.
	m = NewMeta("User", Fillable("name"), Guarded("*"))
	assert.True(t, m.fillAllowed("name"))
	assert.False(t, m.fillAllowed("email"))

	// Plain deny-list rejects only the listed fields.
	m = NewMeta("User", Guarded("is_admin"))
	assert.True(t, m.fillAllowed("name"))
	assert.False(t, m.fillAllowed("is_admin"))

	// No rules at all: everything fillable.
	m = NewMeta("User")
	assert.True(t, m.fillAllowed("anything"))
}

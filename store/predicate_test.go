package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateSQL(t *testing.T) {
	from, to := int64(100), int64(200)

	tests := []struct {
		name      string
		predicate Predicate
		dialect   Dialect
		wantSQL   string
		wantArgs  []any
	}{
		{"owner", OwnerIs("alice"), DialectPostgres, "owner_id = ?", []any{"alice"}},
		{"id", IDIs("abc"), DialectSQLite, "id = ?", []any{"abc"}},
		{"kinds", KindIn(ContentKindNote, ContentKindLink), DialectPostgres, "kind IN (?,?)", []any{"NOTE", "LINK"}},
		{"created range", CreatedBetween{From: &from, To: &to}, DialectSQLite, "(created_ts >= ? AND created_ts < ?)", []any{int64(100), int64(200)}},
		{"created open start", CreatedBetween{To: &to}, DialectSQLite, "(created_ts < ?)", []any{int64(200)}},
		{"title postgres", TitleContains("Budget"), DialectPostgres, "strpos(lower(title), lower(?)) > 0", []any{"Budget"}},
		{"title sqlite", TitleContains("Budget"), DialectSQLite, "instr(unicode_lower(title), unicode_lower(?)) > 0", []any{"Budget"}},
		{"tag postgres", HasTag("work"), DialectPostgres, "? = ANY(tags)", []any{"work"}},
		{"embedding present", EmbeddingPresent(true), DialectPostgres, "embedding IS NOT NULL", nil},
		{"embedding missing", EmbeddingPresent(false), DialectSQLite, "embedding IS NULL", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.predicate.Sqlizer(tt.dialect).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestFindContentItemPredicates_OwnerFirst(t *testing.T) {
	title := "meeting"
	find := &FindContentItem{
		OwnerID:       "alice",
		Kinds:         []ContentKind{ContentKindNote},
		TitleContains: &title,
	}

	predicates := find.Predicates()
	require.Len(t, predicates, 3)
	assert.Equal(t, OwnerIs("alice"), predicates[0])
}

func TestWhere_RendersWithDollarPlaceholders(t *testing.T) {
	find := &FindContentItem{OwnerID: "alice", Kinds: []ContentKind{ContentKindDocument}}

	sql, args, err := DialectPostgres.Builder().
		Select("id").
		From("content_item").
		Where(Where(DialectPostgres, find.Predicates())).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM content_item WHERE (owner_id = $1 AND kind IN ($2))", sql)
	assert.Equal(t, []any{"alice", "DOCUMENT"}, args)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"ai", "work"}, NormalizeTags([]string{" work", "ai", "work ", ""}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestContentKindIsValid(t *testing.T) {
	assert.True(t, ContentKindNote.IsValid())
	assert.True(t, ContentKindLink.IsValid())
	assert.False(t, ContentKind("TWEET").IsValid())
	assert.False(t, ContentKind("VIDEO").IsValid())
}

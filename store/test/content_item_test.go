package test

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/secondbrain/store"
)

// testVector returns a unit vector whose cosine similarity with axisVector(0) is cos.
func testVector(cos float64) []float32 {
	v := make([]float32, store.EmbeddingDimensions)
	v[0] = float32(cos)
	v[1] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func axisVector(i int) []float32 {
	v := make([]float32, store.EmbeddingDimensions)
	v[i] = 1
	return v
}

// newOwner isolates tests that share one database through POSTGRES_TEST_DSN.
func newOwner() string {
	return "owner-" + uuid.NewString()
}

func TestContentItemStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := newOwner()

	item, err := ts.CreateContentItem(ctx, &store.ContentItem{
		OwnerID:       owner,
		Kind:          store.ContentKindNote,
		Title:         "Budget Meeting Notes",
		Body:          "Discussed the Q3 budget.",
		Tags:          []string{"work", " finance", "work"},
		ExtraMetadata: json.RawMessage(`{"source":"import"}`),
		Embedding:     testVector(0.5),
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.NotZero(t, item.CreatedTs)
	require.Equal(t, item.CreatedTs, item.UpdatedTs)
	require.Equal(t, []string{"finance", "work"}, item.Tags)

	got, err := ts.GetContentItem(ctx, item.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, item.ID, got.ID)
	require.Equal(t, store.ContentKindNote, got.Kind)
	require.Equal(t, "Budget Meeting Notes", got.Title)
	require.Equal(t, []string{"finance", "work"}, got.Tags)
	require.JSONEq(t, `{"source":"import"}`, string(got.ExtraMetadata))
	require.Len(t, got.Embedding, store.EmbeddingDimensions)
	require.InDelta(t, 0.5, got.Embedding[0], 1e-6)

	// Another owner cannot see or delete the item.
	foreign, err := ts.GetContentItem(ctx, item.ID, newOwner())
	require.NoError(t, err)
	require.Nil(t, foreign)
	deleted, err := ts.DeleteContentItem(ctx, &store.DeleteContentItem{ID: item.ID, OwnerID: newOwner()})
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = ts.DeleteContentItem(ctx, &store.DeleteContentItem{ID: item.ID, OwnerID: owner})
	require.NoError(t, err)
	require.True(t, deleted)

	got, err = ts.GetContentItem(ctx, item.ID, owner)
	require.NoError(t, err)
	require.Nil(t, got)

	deleted, err = ts.DeleteContentItem(ctx, &store.DeleteContentItem{ID: item.ID, OwnerID: owner})
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestCreateContentItem_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.CreateContentItem(ctx, &store.ContentItem{Kind: store.ContentKindNote, Title: "orphan"})
	require.ErrorIs(t, err, store.ErrOwnerRequired)

	_, err = ts.CreateContentItem(ctx, &store.ContentItem{OwnerID: newOwner(), Kind: "TWEET"})
	require.ErrorIs(t, err, store.ErrInvalidKind)

	_, err = ts.CreateContentItem(ctx, &store.ContentItem{
		OwnerID:   newOwner(),
		Kind:      store.ContentKindNote,
		Embedding: []float32{1, 2, 3},
	})
	require.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = ts.ListContentItems(ctx, &store.FindContentItem{})
	require.ErrorIs(t, err, store.ErrOwnerRequired)
}

func TestListContentItems_Filters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := newOwner()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []struct {
		kind  store.ContentKind
		title string
		tags  []string
		at    time.Time
	}{
		{store.ContentKindNote, "Weekly sync", []string{"work"}, base},
		{store.ContentKindLink, "Go generics tutorial", []string{"golang"}, base.Add(time.Hour)},
		{store.ContentKindDocument, "Quarterly report", []string{"work", "finance"}, base.Add(2 * time.Hour)},
	}
	for _, f := range fixtures {
		_, err := ts.CreateContentItem(ctx, &store.ContentItem{
			OwnerID:   owner,
			Kind:      f.kind,
			Title:     f.title,
			Tags:      f.tags,
			CreatedTs: f.at.Unix(),
		})
		require.NoError(t, err)
	}
	_, err := ts.CreateContentItem(ctx, &store.ContentItem{OwnerID: newOwner(), Kind: store.ContentKindNote, Title: "Weekly sync"})
	require.NoError(t, err)

	all, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Quarterly report", all[0].Title, "newest first")

	links, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, Kinds: []store.ContentKind{store.ContentKindLink}})
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, store.ContentKindLink, links[0].Kind)

	tag := "work"
	tagged, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, Tag: &tag})
	require.NoError(t, err)
	require.Len(t, tagged, 2)

	title := "WEEKLY"
	titled, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, TitleContains: &title})
	require.NoError(t, err)
	require.Len(t, titled, 1)
	require.Equal(t, "Weekly sync", titled[0].Title)

	_, err = ts.CreateContentItem(ctx, &store.ContentItem{OwnerID: owner, Kind: store.ContentKindNote, Title: "Über Café Notes", CreatedTs: base.Add(-time.Hour).Unix()})
	require.NoError(t, err)
	for _, query := range []string{"über café", "ÜBER CAFÉ", "Über Café"} {
		q := query
		unicodeTitled, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, TitleContains: &q})
		require.NoError(t, err)
		require.Len(t, unicodeTitled, 1, query)
		require.Equal(t, "Über Café Notes", unicodeTitled[0].Title)
	}

	from, to := base.Add(30*time.Minute).Unix(), base.Add(2*time.Hour).Unix()
	ranged, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, CreatedTsAfter: &from, CreatedTsBefore: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	require.Equal(t, "Go generics tutorial", ranged[0].Title)

	limit, offset := 1, 1
	page, err := ts.ListContentItems(ctx, &store.FindContentItem{OwnerID: owner, Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "Go generics tutorial", page[0].Title)
}

func TestContentItemEmbeddingBackfill(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := newOwner()

	item, err := ts.CreateContentItem(ctx, &store.ContentItem{
		OwnerID: owner,
		Kind:    store.ContentKindLink,
		Title:   "Pending embedding",
	})
	require.NoError(t, err)

	pending, err := ts.FindContentItemsWithoutEmbedding(ctx, 100)
	require.NoError(t, err)
	require.True(t, containsID(pending, item.ID))

	require.ErrorIs(t, ts.UpdateContentItemEmbedding(ctx, item.ID, []float32{1}), store.ErrDimensionMismatch)
	require.NoError(t, ts.UpdateContentItemEmbedding(ctx, item.ID, axisVector(0)))

	pending, err = ts.FindContentItemsWithoutEmbedding(ctx, 100)
	require.NoError(t, err)
	require.False(t, containsID(pending, item.ID))

	got, err := ts.GetContentItem(ctx, item.ID, owner)
	require.NoError(t, err)
	require.Len(t, got.Embedding, store.EmbeddingDimensions)

	require.Error(t, ts.UpdateContentItemEmbedding(ctx, "missing", axisVector(0)))
}

func containsID(items []*store.ContentItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

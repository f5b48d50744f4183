package content

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/store"
	teststore "github.com/hrygo/secondbrain/store/test"
)

type recordingEmbedder struct {
	mu     sync.Mutex
	inputs []string
	dims   int
	err    error
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, text)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v := make([]float32, r.dims)
	v[0] = 1
	return v, nil
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := r.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *recordingEmbedder) Dimensions() int { return r.dims }

func newService(t *testing.T, embedder *recordingEmbedder) (*Service, *store.Store) {
	t.Helper()
	st := teststore.NewTestingStore(context.Background(), t)
	if embedder == nil {
		return NewService(st, nil), st
	}
	return NewService(st, embedder), st
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t, &recordingEmbedder{dims: store.EmbeddingDimensions})
	ctx := context.Background()

	tests := []struct {
		name string
		req  *CreateRequest
	}{
		{"missing owner", &CreateRequest{Kind: store.ContentKindNote, Title: "t"}},
		{"unsupported kind", &CreateRequest{OwnerID: "alice", Kind: "TWEET", Title: "t"}},
		{"empty kind", &CreateRequest{OwnerID: "alice", Title: "t"}},
		{"link without url", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindLink, Title: "t"}},
		{"relative url", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindLink, SourceURL: "/foo"}},
		{"ftp url", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindLink, SourceURL: "ftp://example.com/x"}},
		{"empty item", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "  "}},
		{"metadata not object", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "t", ExtraMetadata: json.RawMessage(`[1,2]`)}},
		{"metadata invalid", &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "t", ExtraMetadata: json.RawMessage(`{`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument), "got %v", err)
		})
	}
}

func TestCreate_NullMetadataIsAbsent(t *testing.T) {
	svc, st := newService(t, &recordingEmbedder{dims: store.EmbeddingDimensions})
	ctx := context.Background()

	for _, raw := range []string{"null", "  null\n"} {
		result, err := svc.Create(ctx, &CreateRequest{
			OwnerID:       "alice",
			Kind:          store.ContentKindNote,
			Title:         "Groceries",
			ExtraMetadata: json.RawMessage(raw),
		})
		require.NoError(t, err, raw)

		stored, err := st.GetContentItem(ctx, result.Item.ID, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.JSONEq(t, `{}`, string(stored.ExtraMetadata))
	}
}

func TestCreate_EmbedsBeforeInsert(t *testing.T) {
	embedder := &recordingEmbedder{dims: store.EmbeddingDimensions}
	svc, st := newService(t, embedder)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	result, err := svc.Create(ctx, &CreateRequest{
		OwnerID:   "alice",
		Kind:      store.ContentKindLink,
		Title:     " Budget thread ",
		Body:      "**Q3** numbers",
		SourceURL: "https://example.com/thread",
		Tags:      []string{"work", "work", "finance"},
	})
	require.NoError(t, err)
	assert.False(t, result.EmbeddingPending)
	assert.Equal(t, "Budget thread", result.Item.Title)
	assert.Equal(t, []string{"finance", "work"}, result.Item.Tags)
	assert.Equal(t, int64(1709631000), result.Item.CreatedTs)

	require.Len(t, embedder.inputs, 1)
	assert.Equal(t, "Budget thread\n\nQ3 numbers\n\nhttps://example.com/thread\n\n2024-03-05T09:30:00Z", embedder.inputs[0])

	pending, err := st.FindContentItemsWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreate_EmbeddingFailureStoresPendingItem(t *testing.T) {
	embedder := &recordingEmbedder{dims: store.EmbeddingDimensions, err: errors.New("503")}
	svc, st := newService(t, embedder)
	ctx := context.Background()

	result, err := svc.Create(ctx, &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Groceries", Body: "milk"})
	require.NoError(t, err)
	assert.True(t, result.EmbeddingPending)

	pending, err := st.FindContentItemsWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Item.ID, pending[0].ID)
}

func TestCreate_WrongDimensionStoresPendingItem(t *testing.T) {
	svc, _ := newService(t, &recordingEmbedder{dims: 8})

	result, err := svc.Create(context.Background(), &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Groceries"})
	require.NoError(t, err)
	assert.True(t, result.EmbeddingPending)
	assert.Nil(t, result.Item.Embedding)
}

func TestCreate_WithoutEmbedder(t *testing.T) {
	svc, _ := newService(t, nil)

	result, err := svc.Create(context.Background(), &CreateRequest{OwnerID: "alice", Kind: store.ContentKindDocument, Body: "text"})
	require.NoError(t, err)
	assert.True(t, result.EmbeddingPending)
}

func TestGetAndDelete_Ownership(t *testing.T) {
	svc, _ := newService(t, &recordingEmbedder{dims: store.EmbeddingDimensions})
	ctx := context.Background()

	result, err := svc.Create(ctx, &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Private"})
	require.NoError(t, err)
	id := result.Item.ID

	_, err = svc.Get(ctx, "bob", id)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound))

	err = svc.Delete(ctx, "bob", id)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound))

	got, err := svc.Get(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)

	require.NoError(t, svc.Delete(ctx, "alice", id))
	_, err = svc.Get(ctx, "alice", id)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound))

	err = svc.Delete(ctx, "alice", id)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound), "delete is not idempotent-success")
}

func TestList_Filters(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	create := func(kind store.ContentKind, title string, tags []string, at time.Time) {
		svc.now = func() time.Time { return at }
		req := &CreateRequest{OwnerID: "alice", Kind: kind, Title: title, Tags: tags}
		if kind == store.ContentKindLink {
			req.SourceURL = "https://example.com/" + title
		}
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}
	create(store.ContentKindNote, "first", []string{"work"}, base)
	create(store.ContentKindLink, "second", nil, base.Add(time.Hour))
	create(store.ContentKindNote, "third", []string{"home"}, base.Add(2*time.Hour))

	items, err := svc.List(ctx, "alice", ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "third", items[0].Title, "newest first")

	items, err = svc.List(ctx, "alice", ListFilter{Kinds: []store.ContentKind{store.ContentKindLink}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Title)

	items, err = svc.List(ctx, "alice", ListFilter{Tag: "work"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Title)

	from, to := base.Add(30*time.Minute), base.Add(2*time.Hour)
	items, err = svc.List(ctx, "alice", ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Title)

	items, err = svc.List(ctx, "alice", ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Title)

	_, err = svc.List(ctx, "alice", ListFilter{Limit: -1})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
	_, err = svc.List(ctx, "alice", ListFilter{Kinds: []store.ContentKind{"VIDEO"}})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
	_, err = svc.List(ctx, "alice", ListFilter{From: &to, To: &from})
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))

	items, err = svc.List(ctx, "bob", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTitleSearch(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 7 {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := svc.Create(ctx, &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Budget Meeting " + string(rune('A'+i))})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Groceries"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{OwnerID: "bob", Kind: store.ContentKindNote, Title: "Budget Meeting Z"})
	require.NoError(t, err)

	items, err := svc.TitleSearch(ctx, "alice", "  budget MEETING ")
	require.NoError(t, err)
	require.Len(t, items, TitleSearchLimit)
	assert.Equal(t, "Budget Meeting G", items[0].Title)
	for _, item := range items {
		assert.Equal(t, "alice", item.OwnerID)
	}

	_, err = svc.TitleSearch(ctx, "alice", " ")
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
}

func TestTitleSearch_UnicodeCaseFolding(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateRequest{OwnerID: "alice", Kind: store.ContentKindNote, Title: "Über Café Notes"})
	require.NoError(t, err)

	items, err := svc.TitleSearch(ctx, "alice", "über café")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1.0, store.TitleScore("über café", items[0].Title))
}

func TestEmbeddingInput(t *testing.T) {
	item := &store.ContentItem{Title: "Only title"}
	assert.Equal(t, "Only title", EmbeddingInput(item))

	item = &store.ContentItem{Body: "# Heading\n\ntext", CreatedTs: 0}
	assert.Equal(t, "Heading\ntext", EmbeddingInput(item))
}

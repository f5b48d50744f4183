// Package content implements item creation, lookup and deletion on top of the store.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/plugin/ai"
	"github.com/hrygo/secondbrain/plugin/ai/timeout"
	"github.com/hrygo/secondbrain/plugin/markdown"
	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/internal/observability"
	"github.com/hrygo/secondbrain/store"
)

const (
	// TitleSearchLimit is the number of items returned by a title search.
	TitleSearchLimit = 5
	// DefaultListLimit and MaxListLimit bound item listings.
	DefaultListLimit = 50
	MaxListLimit     = 200

	maxTitleLength = 512
	maxTags        = 64
)

// Service owns the item lifecycle. The embedder may be nil, in which case
// every item is stored without an embedding and left to the backfill runner.
type Service struct {
	store    *store.Store
	embedder ai.EmbeddingService
	now      func() time.Time
}

// NewService creates a content service.
func NewService(st *store.Store, embedder ai.EmbeddingService) *Service {
	return &Service{
		store:    st,
		embedder: embedder,
		now:      time.Now,
	}
}

// CreateRequest is the input of Create.
type CreateRequest struct {
	OwnerID       string
	Kind          store.ContentKind
	Title         string
	Body          string
	SourceURL     string
	Tags          []string
	ExtraMetadata json.RawMessage
}

// CreateResult reports the stored item and whether its embedding is still pending.
type CreateResult struct {
	Item             *store.ContentItem
	EmbeddingPending bool
}

func validateCreate(req *CreateRequest) error {
	// JSON null is an absent value.
	if trimmed := bytes.TrimSpace(req.ExtraMetadata); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		req.ExtraMetadata = nil
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return apierrors.InvalidArgument("owner id is required")
	}
	if !req.Kind.IsValid() {
		return apierrors.InvalidArgumentf("unsupported kind %q: must be one of NOTE, DOCUMENT, LINK", req.Kind)
	}
	if len([]rune(req.Title)) > maxTitleLength {
		return apierrors.InvalidArgumentf("title exceeds %d characters", maxTitleLength)
	}
	if len(req.Tags) > maxTags {
		return apierrors.InvalidArgumentf("at most %d tags are allowed", maxTags)
	}
	if req.Kind == store.ContentKindLink && strings.TrimSpace(req.SourceURL) == "" {
		return apierrors.InvalidArgument("sourceUrl is required for LINK items")
	}
	if req.SourceURL != "" {
		u, err := url.Parse(strings.TrimSpace(req.SourceURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apierrors.InvalidArgument("sourceUrl must be an absolute http(s) URL")
		}
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.SourceURL) == "" {
		return apierrors.InvalidArgument("item has no title, body or sourceUrl")
	}
	if len(req.ExtraMetadata) > 0 {
		trimmed := bytes.TrimSpace(req.ExtraMetadata)
		if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
			return apierrors.InvalidArgument("extraMetadata must be a JSON object")
		}
	}
	return nil
}

// Create validates and stores a new item. The embedding is computed before
// the insert; a provider failure stores the item without one.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	item := &store.ContentItem{
		OwnerID:       strings.TrimSpace(req.OwnerID),
		Kind:          req.Kind,
		Title:         strings.TrimSpace(req.Title),
		Body:          req.Body,
		SourceURL:     strings.TrimSpace(req.SourceURL),
		Tags:          req.Tags,
		ExtraMetadata: req.ExtraMetadata,
		CreatedTs:     now.Unix(),
		UpdatedTs:     now.Unix(),
	}

	reqCtx := observability.FromContextOrNew(ctx, "content", item.OwnerID)
	pending := true
	if s.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
		vector, err := s.embedder.Embed(embedCtx, EmbeddingInput(item))
		cancel()
		if err != nil {
			reqCtx.Warn("item embedding failed, storing without embedding",
				slog.String("error", err.Error()),
				slog.String("kind", string(item.Kind)),
			)
		} else {
			item.Embedding = vector
			pending = false
		}
	}

	created, err := s.store.CreateContentItem(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrDimensionMismatch) && item.Embedding != nil {
			reqCtx.Error("embedding has wrong dimension, storing without embedding", err)
			item.Embedding = nil
			pending = true
			created, err = s.store.CreateContentItem(ctx, item)
		}
		if err != nil {
			return nil, storeError("failed to create item", err)
		}
	}

	reqCtx.Info("item created",
		slog.String("item_id", created.ID),
		slog.String("kind", string(created.Kind)),
		slog.Bool("embedding_pending", pending),
	)
	return &CreateResult{Item: created, EmbeddingPending: pending}, nil
}

// ListFilter narrows an item listing.
type ListFilter struct {
	Kinds  []store.ContentKind
	Tag    string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// List returns the owner's items, newest first.
func (s *Service) List(ctx context.Context, ownerID string, filter ListFilter) ([]*store.ContentItem, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apierrors.InvalidArgument("owner id is required")
	}
	for _, kind := range filter.Kinds {
		if !kind.IsValid() {
			return nil, apierrors.InvalidArgumentf("unsupported kind %q", kind)
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apierrors.InvalidArgument("limit and offset must not be negative")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apierrors.InvalidArgument("from must not be after to")
	}

	limit := filter.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	find := &store.FindContentItem{
		OwnerID: ownerID,
		Kinds:   filter.Kinds,
		Limit:   &limit,
	}
	if filter.Offset > 0 {
		find.Offset = &filter.Offset
	}
	if filter.Tag != "" {
		find.Tag = &filter.Tag
	}
	if filter.From != nil {
		from := filter.From.Unix()
		find.CreatedTsAfter = &from
	}
	if filter.To != nil {
		to := filter.To.Unix()
		find.CreatedTsBefore = &to
	}

	items, err := s.store.ListContentItems(ctx, find)
	if err != nil {
		return nil, storeError("failed to list items", err)
	}
	return items, nil
}

// Get returns the item or NOT_FOUND, also when it belongs to another owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*store.ContentItem, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apierrors.InvalidArgument("owner id is required")
	}
	item, err := s.store.GetContentItem(ctx, id, ownerID)
	if err != nil {
		return nil, storeError("failed to get item", err)
	}
	if item == nil {
		return nil, apierrors.NotFound("item not found").WithContext("id", id)
	}
	return item, nil
}

// Delete removes the item or returns NOT_FOUND.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apierrors.InvalidArgument("owner id is required")
	}
	deleted, err := s.store.DeleteContentItem(ctx, &store.DeleteContentItem{ID: id, OwnerID: ownerID})
	if err != nil {
		return storeError("failed to delete item", err)
	}
	if !deleted {
		return apierrors.NotFound("item not found").WithContext("id", id)
	}
	observability.FromContextOrNew(ctx, "content", ownerID).Info("item deleted", slog.String("item_id", id))
	return nil
}

// TitleSearch returns up to five of the owner's items whose title contains
// query case-insensitively, newest first.
func (s *Service) TitleSearch(ctx context.Context, ownerID, query string) ([]*store.ContentItem, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apierrors.InvalidArgument("owner id is required")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierrors.InvalidArgument("query is required")
	}
	limit := TitleSearchLimit
	items, err := s.store.ListContentItems(ctx, &store.FindContentItem{
		OwnerID:       ownerID,
		TitleContains: &query,
		Limit:         &limit,
	})
	if err != nil {
		return nil, storeError("failed to search titles", err)
	}
	return items, nil
}

// EmbeddingInput builds the text embedded for an item: title, plain-text body,
// source URL and creation time, separated by blank lines.
func EmbeddingInput(item *store.ContentItem) string {
	parts := make([]string, 0, 4)
	if title := strings.TrimSpace(item.Title); title != "" {
		parts = append(parts, title)
	}
	if body := strings.TrimSpace(markdown.PlainText(item.Body)); body != "" {
		parts = append(parts, body)
	}
	if item.SourceURL != "" {
		parts = append(parts, item.SourceURL)
	}
	if item.CreatedTs > 0 {
		parts = append(parts, time.Unix(item.CreatedTs, 0).UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, "\n\n")
}

func storeError(msg string, err error) error {
	switch {
	case errors.Is(err, store.ErrOwnerRequired), errors.Is(err, store.ErrInvalidKind):
		return apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.Timeout(msg, err)
	default:
		return apierrors.Internal(msg, err)
	}
}

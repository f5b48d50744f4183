package store

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// ContentKind is the closed set of item kinds.
type ContentKind string

const (
	ContentKindNote     ContentKind = "NOTE"
	ContentKindDocument ContentKind = "DOCUMENT"
	ContentKindLink     ContentKind = "LINK"
)

// IsValid reports whether k is one of the supported kinds.
// The historical TWEET and VIDEO kinds are not accepted.
func (k ContentKind) IsValid() bool {
	switch k {
	case ContentKindNote, ContentKindDocument, ContentKindLink:
		return true
	default:
		return false
	}
}

var (
	// ErrOwnerRequired is returned when a query is not scoped to an owner.
	ErrOwnerRequired = errors.New("owner id is required")
	// ErrInvalidKind is returned for kinds outside the closed enumeration.
	ErrInvalidKind = errors.New("invalid content kind")
	// ErrDimensionMismatch is returned when an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingDimensions is the fixed vector length of every stored embedding.
const EmbeddingDimensions = 1536

// ContentItem is a saved note, document or link.
type ContentItem struct {
	ID            string
	OwnerID       string
	Kind          ContentKind
	Title         string
	Body          string
	SourceURL     string
	Tags          []string
	ExtraMetadata json.RawMessage
	// Embedding is nil until the item has been embedded.
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// FindContentItem is the find condition for content items.
// OwnerID is mandatory.
type FindContentItem struct {
	ID              *string
	OwnerID         string
	Kinds           []ContentKind
	CreatedTsAfter  *int64
	CreatedTsBefore *int64
	TitleContains   *string
	Tag             *string
	HasEmbedding    *bool

	Limit  *int
	Offset *int
}

// Predicates converts the find condition into typed predicates.
// The owner predicate always comes first.
func (f *FindContentItem) Predicates() []Predicate {
	predicates := []Predicate{OwnerIs(f.OwnerID)}
	if f.ID != nil {
		predicates = append(predicates, IDIs(*f.ID))
	}
	if len(f.Kinds) > 0 {
		predicates = append(predicates, KindIn(f.Kinds...))
	}
	if f.CreatedTsAfter != nil || f.CreatedTsBefore != nil {
		predicates = append(predicates, CreatedBetween{From: f.CreatedTsAfter, To: f.CreatedTsBefore})
	}
	if f.TitleContains != nil && *f.TitleContains != "" {
		predicates = append(predicates, TitleContains(*f.TitleContains))
	}
	if f.Tag != nil && *f.Tag != "" {
		predicates = append(predicates, HasTag(*f.Tag))
	}
	if f.HasEmbedding != nil {
		predicates = append(predicates, EmbeddingPresent(*f.HasEmbedding))
	}
	return predicates
}

// DeleteContentItem identifies the item to delete. Both fields are required.
type DeleteContentItem struct {
	ID      string
	OwnerID string
}

// NormalizeTags trims, de-duplicates and sorts tags so they behave as a set.
func NormalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(result, tag) {
			continue
		}
		result = append(result, tag)
	}
	slices.Sort(result)
	return result
}

func validateEmbedding(embedding []float32) error {
	if embedding != nil && len(embedding) != EmbeddingDimensions {
		return errors.Wrapf(ErrDimensionMismatch, "got %d, want %d", len(embedding), EmbeddingDimensions)
	}
	return nil
}

// CreateContentItem inserts a new item. The embedding, when present, is written in the same statement.
func (s *Store) CreateContentItem(ctx context.Context, create *ContentItem) (*ContentItem, error) {
	if create.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if !create.Kind.IsValid() {
		return nil, errors.Wrapf(ErrInvalidKind, "kind %q", create.Kind)
	}
	if err := validateEmbedding(create.Embedding); err != nil {
		return nil, err
	}
	if create.ID == "" {
		create.ID = shortuuid.New()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}
	if len(create.ExtraMetadata) == 0 {
		create.ExtraMetadata = json.RawMessage("{}")
	}
	create.Tags = NormalizeTags(create.Tags)
	return s.driver.CreateContentItem(ctx, create)
}

// ListContentItems lists the owner's items, newest first.
func (s *Store) ListContentItems(ctx context.Context, find *FindContentItem) ([]*ContentItem, error) {
	if find == nil || find.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	return s.driver.ListContentItems(ctx, find)
}

// GetContentItem returns the item, or nil when it does not exist or belongs to another owner.
func (s *Store) GetContentItem(ctx context.Context, id, ownerID string) (*ContentItem, error) {
	list, err := s.ListContentItems(ctx, &FindContentItem{
		ID:      &id,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteContentItem deletes the item if the owner matches and reports whether a row was removed.
func (s *Store) DeleteContentItem(ctx context.Context, delete *DeleteContentItem) (bool, error) {
	if delete.OwnerID == "" {
		return false, ErrOwnerRequired
	}
	if delete.ID == "" {
		return false, nil
	}
	return s.driver.DeleteContentItem(ctx, delete)
}

// FindContentItemsWithoutEmbedding returns items of any owner that still need an embedding.
func (s *Store) FindContentItemsWithoutEmbedding(ctx context.Context, limit int) ([]*ContentItem, error) {
	return s.driver.FindContentItemsWithoutEmbedding(ctx, limit)
}

// UpdateContentItemEmbedding stores a freshly computed embedding.
func (s *Store) UpdateContentItemEmbedding(ctx context.Context, id string, embedding []float32) error {
	if embedding == nil {
		return errors.New("embedding is required")
	}
	if err := validateEmbedding(embedding); err != nil {
		return err
	}
	return s.driver.UpdateContentItemEmbedding(ctx, id, embedding)
}

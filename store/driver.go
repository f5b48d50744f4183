package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Dialect reports the SQL flavour predicates are rendered for.
	Dialect() Dialect

	// ContentItem model related methods.
	CreateContentItem(ctx context.Context, create *ContentItem) (*ContentItem, error)
	ListContentItems(ctx context.Context, find *FindContentItem) ([]*ContentItem, error)
	DeleteContentItem(ctx context.Context, delete *DeleteContentItem) (bool, error)

	// HybridSearch ranks the owner's embedded items by the weighted
	// similarity, title and date signals described by opts.
	HybridSearch(ctx context.Context, opts *HybridSearchOptions) ([]*ScoredContentItem, error)

	// Embedding maintenance, used by the backfill runner only.
	FindContentItemsWithoutEmbedding(ctx context.Context, limit int) ([]*ContentItem, error)
	UpdateContentItemEmbedding(ctx context.Context, id string, embedding []float32) error
}

package sqlite

import (
	"context"

	"github.com/hrygo/secondbrain/store"
)

// HybridSearch loads the owner's embedded items and ranks them in memory.
// SQLite has no vector type, so the scoring runs in Go with the same formula
// the PostgreSQL driver evaluates in SQL.
func (d *DB) HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ScoredContentItem, error) {
	hasEmbedding := true
	candidates, err := d.ListContentItems(ctx, &store.FindContentItem{
		OwnerID:      opts.OwnerID,
		HasEmbedding: &hasEmbedding,
	})
	if err != nil {
		return nil, err
	}
	return store.RankCandidates(candidates, opts), nil
}

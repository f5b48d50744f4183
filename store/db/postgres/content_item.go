package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/store"
)

var contentItemColumns = []string{
	"id", "owner_id", "kind", "title", "body", "source_url",
	"tags", "extra_metadata", "embedding", "created_ts", "updated_ts",
}

func builder() sq.StatementBuilderType {
	return store.DialectPostgres.Builder()
}

func vectorArg(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func (d *DB) CreateContentItem(ctx context.Context, create *store.ContentItem) (*store.ContentItem, error) {
	stmt, args, err := builder().
		Insert("content_item").
		Columns(contentItemColumns...).
		Values(
			create.ID,
			create.OwnerID,
			string(create.Kind),
			create.Title,
			create.Body,
			create.SourceURL,
			pq.Array(create.Tags),
			string(create.ExtraMetadata),
			vectorArg(create.Embedding),
			create.CreatedTs,
			create.UpdatedTs,
		).
		Suffix("RETURNING created_ts, updated_ts").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build insert")
	}

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create content item")
	}
	return create, nil
}

func (d *DB) ListContentItems(ctx context.Context, find *store.FindContentItem) ([]*store.ContentItem, error) {
	query := builder().
		Select(contentItemColumns...).
		From("content_item").
		Where(store.Where(store.DialectPostgres, find.Predicates())).
		OrderBy("created_ts DESC", "id ASC")
	if find.Limit != nil {
		query = query.Limit(uint64(*find.Limit))
		if find.Offset != nil {
			query = query.Offset(uint64(*find.Offset))
		}
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list content items")
	}
	defer rows.Close()

	list := []*store.ContentItem{}
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteContentItem(ctx context.Context, delete *store.DeleteContentItem) (bool, error) {
	stmt, args, err := builder().
		Delete("content_item").
		Where(store.Where(store.DialectPostgres, []store.Predicate{
			store.OwnerIs(delete.OwnerID),
			store.IDIs(delete.ID),
		})).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "failed to build delete")
	}
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete content item")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) FindContentItemsWithoutEmbedding(ctx context.Context, limit int) ([]*store.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	stmt, args, err := builder().
		Select(contentItemColumns...).
		From("content_item").
		Where(store.EmbeddingPresent(false).Sqlizer(store.DialectPostgres)).
		OrderBy("created_ts ASC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find content items without embedding")
	}
	defer rows.Close()

	list := []*store.ContentItem{}
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateContentItemEmbedding(ctx context.Context, id string, embedding []float32) error {
	stmt, args, err := builder().
		Update("content_item").
		Set("embedding", pgvector.NewVector(embedding)).
		Set("updated_ts", time.Now().Unix()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update content item embedding")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.Errorf("content item %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanContentItem reads the contentItemColumns in order, followed by any extra destinations.
func scanContentItem(row rowScanner, extra ...any) (*store.ContentItem, error) {
	var (
		item     store.ContentItem
		kind     string
		tags     []string
		metadata []byte
		vector   *pgvector.Vector
	)
	dest := []any{
		&item.ID,
		&item.OwnerID,
		&kind,
		&item.Title,
		&item.Body,
		&item.SourceURL,
		pq.Array(&tags),
		&metadata,
		&vector,
		&item.CreatedTs,
		&item.UpdatedTs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan content item")
	}

	item.Kind = store.ContentKind(kind)
	item.Tags = tags
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.ExtraMetadata = json.RawMessage(metadata)
	if vector != nil {
		item.Embedding = vector.Slice()
	}
	return &item, nil
}

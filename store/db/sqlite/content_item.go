package sqlite

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/store"
)

var contentItemColumns = []string{
	"id", "owner_id", "kind", "title", "body", "source_url",
	"tags", "extra_metadata", "embedding", "created_ts", "updated_ts",
}

func builder() sq.StatementBuilderType {
	return store.DialectSQLite.Builder()
}

// vectorArg stores embeddings in pgvector's text form so both drivers share one encoding.
func vectorArg(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func (d *DB) CreateContentItem(ctx context.Context, create *store.ContentItem) (*store.ContentItem, error) {
	tags, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}

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
			string(tags),
			string(create.ExtraMetadata),
			vectorArg(create.Embedding),
			create.CreatedTs,
			create.UpdatedTs,
		).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build insert")
	}

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create content item")
	}
	return create, nil
}

func (d *DB) ListContentItems(ctx context.Context, find *store.FindContentItem) ([]*store.ContentItem, error) {
	query := builder().
		Select(contentItemColumns...).
		From("content_item").
		Where(store.Where(store.DialectSQLite, find.Predicates())).
		OrderBy("created_ts DESC", "id ASC")
	if find.Limit != nil {
		query = query.Limit(uint64(*find.Limit))
		if find.Offset != nil {
			query = query.Offset(uint64(*find.Offset))
		}
	}
	return d.queryContentItems(ctx, query)
}

func (d *DB) DeleteContentItem(ctx context.Context, delete *store.DeleteContentItem) (bool, error) {
	stmt, args, err := builder().
		Delete("content_item").
		Where(store.Where(store.DialectSQLite, []store.Predicate{
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
	query := builder().
		Select(contentItemColumns...).
		From("content_item").
		Where(store.EmbeddingPresent(false).Sqlizer(store.DialectSQLite)).
		OrderBy("created_ts ASC", "id ASC").
		Limit(uint64(limit))
	return d.queryContentItems(ctx, query)
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

func (d *DB) queryContentItems(ctx context.Context, query sq.SelectBuilder) ([]*store.ContentItem, error) {
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
		var (
			item     store.ContentItem
			kind     string
			tags     string
			metadata string
			vector   *pgvector.Vector
		)
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&kind,
			&item.Title,
			&item.Body,
			&item.SourceURL,
			&tags,
			&metadata,
			&vector,
			&item.CreatedTs,
			&item.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan content item")
		}

		item.Kind = store.ContentKind(kind)
		item.Tags = []string{}
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal tags of %s", item.ID)
		}
		item.ExtraMetadata = json.RawMessage(metadata)
		if vector != nil {
			item.Embedding = vector.Slice()
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/store"
)

// scoredColumns lists the item columns the hybrid query returns. The stored
// embedding is left out since callers only need the scores.
var scoredColumns = []string{
	"id", "owner_id", "kind", "title", "body", "source_url",
	"tags", "extra_metadata", "NULL::vector AS embedding", "created_ts", "updated_ts",
}

// HybridSearch ranks items in a single statement:
//
//	similarity_score = clamp(1 - (embedding <=> :vector), 0, 1)
//	title_score      = 1 if the query is a case-insensitive substring of the title
//	date_score       = 1 if created_ts falls on the parsed date in the given zone
//	total_score      = weighted sum of the three
//
// Rows qualify when the weighted similarity exceeds the threshold, or on a
// title or date hit.
func (d *DB) HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ScoredContentItem, error) {
	stmt, args, err := buildHybridSearchQuery(opts)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run hybrid search")
	}
	defer rows.Close()

	results := []*store.ScoredContentItem{}
	for rows.Next() {
		scored := &store.ScoredContentItem{}
		item, err := scanContentItem(rows,
			&scored.SimilarityScore,
			&scored.TitleScore,
			&scored.DateScore,
			&scored.TotalScore,
		)
		if err != nil {
			return nil, err
		}
		scored.Item = item
		results = append(results, scored)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildHybridSearchQuery(opts *store.HybridSearchOptions) (string, []any, error) {
	inner := builder().
		Select(scoredColumns...).
		Column(sq.Expr("GREATEST(0, LEAST(1, 1 - (embedding <=> ?)))::float8 AS similarity_score", pgvector.NewVector(opts.Vector)))

	if opts.Query != "" {
		inner = inner.Column(sq.Expr("(CASE WHEN strpos(lower(title), lower(?)) > 0 THEN 1 ELSE 0 END)::float8 AS title_score", opts.Query))
	} else {
		inner = inner.Column("0::float8 AS title_score")
	}

	if opts.ParsedDate != nil {
		day := opts.ParsedDate.Format("2006-01-02")
		inner = inner.Column(sq.Expr(
			"(CASE WHEN (to_timestamp(created_ts) AT TIME ZONE ?)::date = ?::date THEN 1 ELSE 0 END)::float8 AS date_score",
			opts.Location.String(), day,
		))
	} else {
		inner = inner.Column("0::float8 AS date_score")
	}

	inner = inner.
		From("content_item").
		Where(store.Where(store.DialectPostgres, []store.Predicate{
			store.OwnerIs(opts.OwnerID),
			store.EmbeddingPresent(true),
		}))

	w := opts.Weights
	stmt, args, err := builder().
		Select("*").
		Column(sq.Expr("(? * similarity_score + ? * title_score + ? * date_score) AS total_score", w.Similarity, w.Title, w.Date)).
		FromSelect(inner, "scored").
		Where(sq.Or{
			sq.Expr("? * similarity_score > ?", w.Similarity, opts.Threshold),
			sq.Expr("title_score = 1"),
			sq.Expr("date_score = 1"),
		}).
		OrderBy("total_score DESC", "created_ts DESC", "id ASC").
		Limit(uint64(opts.Limit)).
		ToSql()
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to build hybrid search query")
	}
	return stmt, args, nil
}

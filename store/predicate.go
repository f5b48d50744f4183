package store

import (
	sq "github.com/Masterminds/squirrel"
)

// Dialect selects how predicates and placeholders are rendered.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLiteLowerFunc is the Unicode-aware lower() registered by the sqlite driver.
const SQLiteLowerFunc = "unicode_lower"

// Builder returns a statement builder using the dialect's placeholder format.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Predicate is a typed filter over content items.
type Predicate interface {
	Sqlizer(d Dialect) sq.Sqlizer
}

// Where combines predicates into a single conjunction.
func Where(d Dialect, predicates []Predicate) sq.And {
	where := make(sq.And, 0, len(predicates))
	for _, p := range predicates {
		where = append(where, p.Sqlizer(d))
	}
	return where
}

// OwnerIs restricts results to a single owner.
type OwnerIs string

func (p OwnerIs) Sqlizer(Dialect) sq.Sqlizer {
	return sq.Eq{"owner_id": string(p)}
}

// IDIs matches one item id.
type IDIs string

func (p IDIs) Sqlizer(Dialect) sq.Sqlizer {
	return sq.Eq{"id": string(p)}
}

type kindIn []ContentKind

// KindIn matches any of the given kinds.
func KindIn(kinds ...ContentKind) Predicate {
	return kindIn(kinds)
}

func (p kindIn) Sqlizer(Dialect) sq.Sqlizer {
	values := make([]string, len(p))
	for i, k := range p {
		values[i] = string(k)
	}
	return sq.Eq{"kind": values}
}

// CreatedBetween matches From <= created_ts < To. Nil bounds are open.
type CreatedBetween struct {
	From *int64
	To   *int64
}

func (p CreatedBetween) Sqlizer(Dialect) sq.Sqlizer {
	where := sq.And{}
	if p.From != nil {
		where = append(where, sq.GtOrEq{"created_ts": *p.From})
	}
	if p.To != nil {
		where = append(where, sq.Lt{"created_ts": *p.To})
	}
	return where
}

// TitleContains is a case-insensitive substring match on the title.
type TitleContains string

func (p TitleContains) Sqlizer(d Dialect) sq.Sqlizer {
	if d == DialectPostgres {
		return sq.Expr("strpos(lower(title), lower(?)) > 0", string(p))
	}
	return sq.Expr("instr("+SQLiteLowerFunc+"(title), "+SQLiteLowerFunc+"(?)) > 0", string(p))
}

// HasTag matches items carrying the tag.
type HasTag string

func (p HasTag) Sqlizer(d Dialect) sq.Sqlizer {
	if d == DialectPostgres {
		return sq.Expr("? = ANY(tags)", string(p))
	}
	return sq.Expr("EXISTS (SELECT 1 FROM json_each(content_item.tags) WHERE json_each.value = ?)", string(p))
}

// EmbeddingPresent matches items with (true) or without (false) an embedding.
type EmbeddingPresent bool

func (p EmbeddingPresent) Sqlizer(Dialect) sq.Sqlizer {
	if p {
		return sq.NotEq{"embedding": nil}
	}
	return sq.Eq{"embedding": nil}
}

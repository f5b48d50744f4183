package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HybridWeights are the weights of the three ranking signals.
type HybridWeights struct {
	Similarity float64
	Title      float64
	Date       float64
}

// DefaultHybridWeights is 0.6 similarity, 0.3 title, 0.1 date.
var DefaultHybridWeights = HybridWeights{Similarity: 0.6, Title: 0.3, Date: 0.1}

// Total returns the weighted sum of the component scores.
func (w HybridWeights) Total(similarity, title, date float64) float64 {
	return w.Similarity*similarity + w.Title*title + w.Date*date
}

// Qualifies applies the inclusion rule. It is a union: a title or date hit
// admits an item regardless of its similarity.
func (w HybridWeights) Qualifies(similarity, title, date, threshold float64) bool {
	return w.Similarity*similarity > threshold || title == 1 || date == 1
}

// HybridSearchOptions are the inputs of the weighted-similarity query.
type HybridSearchOptions struct {
	OwnerID string
	Vector  []float32
	// Query is matched as a case-insensitive substring of the title.
	Query string
	// ParsedDate, when set, is a calendar date matched against created_ts seen in Location.
	ParsedDate *time.Time
	Location   *time.Location
	Threshold  float64
	Limit      int
	Weights    HybridWeights
}

// ScoredContentItem is a ranked item with its score breakdown.
type ScoredContentItem struct {
	Item            *ContentItem
	SimilarityScore float64
	TitleScore      float64
	DateScore       float64
	TotalScore      float64
}

// HybridSearch runs the owner-scoped hybrid ranking query.
func (s *Store) HybridSearch(ctx context.Context, opts *HybridSearchOptions) ([]*ScoredContentItem, error) {
	if opts.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(opts.Vector) == 0 {
		return nil, errors.New("query vector is required")
	}
	if opts.Limit <= 0 {
		return []*ScoredContentItem{}, nil
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Weights == (HybridWeights{}) {
		opts.Weights = DefaultHybridWeights
	}
	return s.driver.HybridSearch(ctx, opts)
}

// CosineSimilarity returns 1 - cosine distance, clamped to [0, 1].
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clampUnit(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TitleScore is 1 when query is a case-insensitive substring of title.
func TitleScore(query, title string) float64 {
	if query == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(title), strings.ToLower(query)) {
		return 1
	}
	return 0
}

// DateScore is 1 when createdTs, seen in loc, falls on the calendar date of parsed.
// The year, month and day of parsed are taken as-is.
func DateScore(parsed *time.Time, createdTs int64, loc *time.Location) float64 {
	if parsed == nil {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}
	py, pm, pd := parsed.Date()
	cy, cm, cd := time.Unix(createdTs, 0).In(loc).Date()
	if py == cy && pm == cm && pd == cd {
		return 1
	}
	return 0
}

// RankCandidates scores items in memory with the same formula the SQL drivers use.
// Items without an embedding or owned by someone else are skipped.
func RankCandidates(candidates []*ContentItem, opts *HybridSearchOptions) []*ScoredContentItem {
	weights := opts.Weights
	if weights == (HybridWeights{}) {
		weights = DefaultHybridWeights
	}

	results := []*ScoredContentItem{}
	for _, item := range candidates {
		if item.OwnerID != opts.OwnerID || item.Embedding == nil {
			continue
		}
		similarity := CosineSimilarity(item.Embedding, opts.Vector)
		title := TitleScore(opts.Query, item.Title)
		date := DateScore(opts.ParsedDate, item.CreatedTs, opts.Location)
		if !weights.Qualifies(similarity, title, date, opts.Threshold) {
			continue
		}
		results = append(results, &ScoredContentItem{
			Item:            item,
			SimilarityScore: similarity,
			TitleScore:      title,
			DateScore:       date,
			TotalScore:      weights.Total(similarity, title, date),
		})
	}

	SortScored(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// SortScored orders by total score descending, then newest first, then id ascending.
func SortScored(results []*ScoredContentItem) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Item.CreatedTs != b.Item.CreatedTs {
			return a.Item.CreatedTs > b.Item.CreatedTs
		}
		return a.Item.ID < b.Item.ID
	})
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

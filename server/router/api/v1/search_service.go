package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/secondbrain/plugin/markdown"
	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/middleware"
	"github.com/hrygo/secondbrain/server/retrieval"
	"github.com/hrygo/secondbrain/server/service/highlight"
	"github.com/hrygo/secondbrain/store"
)

type searchRequest struct {
	Query               string   `json:"query"`
	SimilarityThreshold *float64 `json:"similarityThreshold"`
	UseAI               *bool    `json:"useAI"`
	ResultLimit         *int     `json:"resultLimit"`
}

type scoresResponse struct {
	Similarity float64 `json:"similarity"`
	Title      float64 `json:"title"`
	Date       float64 `json:"date"`
	Total      float64 `json:"total"`
}

type searchResultResponse struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	SourceURL  string           `json:"sourceUrl,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	Snippet    string           `json:"snippet,omitempty"`
	Highlights []highlight.Span `json:"highlights,omitempty"`
	Scores     scoresResponse   `json:"scores"`
}

type searchResponse struct {
	Results      []searchResultResponse `json:"results"`
	Answer       string                 `json:"answer,omitempty"`
	SourceItemID string                 `json:"sourceItemId,omitempty"`
	ParsedDate   string                 `json:"parsedDate,omitempty"`
	Warnings     []retrieval.Warning    `json:"warnings,omitempty"`
}

type titleSearchResponse struct {
	Items []itemResponse `json:"items"`
}

// Search runs the hybrid ranker.
// POST /api/v1/search
func (s *APIV1Service) Search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}

	useAI := req.UseAI != nil && *req.UseAI
	result, err := s.Ranker.Search(c.Request().Context(), &retrieval.SearchRequest{
		OwnerID:             middleware.OwnerFromContext(c),
		Query:               req.Query,
		SimilarityThreshold: req.SimilarityThreshold,
		ResultLimit:         req.ResultLimit,
		UseAI:               useAI,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.convertSearchResponse(req.Query, result))
}

func (s *APIV1Service) convertSearchResponse(query string, result *retrieval.SearchResponse) searchResponse {
	response := searchResponse{
		Results:      make([]searchResultResponse, 0, len(result.Results)),
		Answer:       result.Answer,
		SourceItemID: result.SourceItemID,
		Warnings:     result.Warnings,
	}
	if result.ParsedDate != nil {
		response.ParsedDate = result.ParsedDate.Format(time.DateOnly)
	}
	for _, r := range result.Results {
		converted := convertScoredItem(r)
		converted.Snippet, converted.Highlights = s.highlighter.Snippet(markdown.PlainText(r.Item.Body), query)
		response.Results = append(response.Results, converted)
	}
	return response
}

func convertScoredItem(r *store.ScoredContentItem) searchResultResponse {
	return searchResultResponse{
		ID:        r.Item.ID,
		Kind:      string(r.Item.Kind),
		Title:     r.Item.Title,
		Body:      r.Item.Body,
		SourceURL: r.Item.SourceURL,
		CreatedAt: time.Unix(r.Item.CreatedTs, 0).UTC(),
		Scores: scoresResponse{
			Similarity: r.SimilarityScore,
			Title:      r.TitleScore,
			Date:       r.DateScore,
			Total:      r.TotalScore,
		},
	}
}

// SearchTitle returns up to five items whose title contains q.
// GET /api/v1/search/title?q=budget
func (s *APIV1Service) SearchTitle(c echo.Context) error {
	items, err := s.ContentService.TitleSearch(c.Request().Context(), middleware.OwnerFromContext(c), c.QueryParam("q"))
	if err != nil {
		return err
	}
	response := titleSearchResponse{Items: make([]itemResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, convertItem(item))
	}
	return c.JSON(http.StatusOK, response)
}

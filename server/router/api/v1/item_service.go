package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/middleware"
	"github.com/hrygo/secondbrain/server/service/content"
	"github.com/hrygo/secondbrain/store"
)

type createItemRequest struct {
	Kind          string          `json:"kind"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	SourceURL     string          `json:"sourceUrl"`
	Tags          []string        `json:"tags"`
	ExtraMetadata json.RawMessage `json:"extraMetadata"`
}

type itemResponse struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	SourceURL     string          `json:"sourceUrl,omitempty"`
	Tags          []string        `json:"tags"`
	ExtraMetadata json.RawMessage `json:"extraMetadata"`
	HasEmbedding  bool            `json:"hasEmbedding"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type createItemResponse struct {
	itemResponse
	EmbeddingPending bool `json:"embeddingPending"`
}

type listItemsResponse struct {
	Items []itemResponse `json:"items"`
}

func convertItem(item *store.ContentItem) itemResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := item.ExtraMetadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return itemResponse{
		ID:            item.ID,
		Kind:          string(item.Kind),
		Title:         item.Title,
		Body:          item.Body,
		SourceURL:     item.SourceURL,
		Tags:          tags,
		ExtraMetadata: metadata,
		HasEmbedding:  item.Embedding != nil,
		CreatedAt:     time.Unix(item.CreatedTs, 0).UTC(),
		UpdatedAt:     time.Unix(item.UpdatedTs, 0).UTC(),
	}
}

// CreateItem saves a note, document or link.
// POST /api/v1/items
func (s *APIV1Service) CreateItem(c echo.Context) error {
	var req createItemRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}

	result, err := s.ContentService.Create(c.Request().Context(), &content.CreateRequest{
		OwnerID:       middleware.OwnerFromContext(c),
		Kind:          store.ContentKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Title:         req.Title,
		Body:          req.Body,
		SourceURL:     req.SourceURL,
		Tags:          req.Tags,
		ExtraMetadata: req.ExtraMetadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createItemResponse{
		itemResponse:     convertItem(result.Item),
		EmbeddingPending: result.EmbeddingPending,
	})
}

// ListItems lists the owner's items, newest first.
// GET /api/v1/items?kind=NOTE,LINK&tag=work&from=2024-01-01&to=2024-02-01&limit=20&offset=0
func (s *APIV1Service) ListItems(c echo.Context) error {
	filter := content.ListFilter{Tag: strings.TrimSpace(c.QueryParam("tag"))}

	for _, raw := range c.QueryParams()["kind"] {
		for _, kind := range strings.Split(raw, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				filter.Kinds = append(filter.Kinds, store.ContentKind(strings.ToUpper(kind)))
			}
		}
	}

	var err error
	if filter.From, err = parseTimeParam(c, "from"); err != nil {
		return err
	}
	if filter.To, err = parseTimeParam(c, "to"); err != nil {
		return err
	}
	if filter.Limit, err = parseIntParam(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = parseIntParam(c, "offset"); err != nil {
		return err
	}

	items, err := s.ContentService.List(c.Request().Context(), middleware.OwnerFromContext(c), filter)
	if err != nil {
		return err
	}
	response := listItemsResponse{Items: make([]itemResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, convertItem(item))
	}
	return c.JSON(http.StatusOK, response)
}

// GetItem returns one item.
// GET /api/v1/items/:id
func (s *APIV1Service) GetItem(c echo.Context) error {
	item, err := s.ContentService.Get(c.Request().Context(), middleware.OwnerFromContext(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertItem(item))
}

// DeleteItem deletes one item.
// DELETE /api/v1/items/:id
func (s *APIV1Service) DeleteItem(c echo.Context) error {
	if err := s.ContentService.Delete(c.Request().Context(), middleware.OwnerFromContext(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseTimeParam accepts RFC 3339 timestamps or YYYY-MM-DD dates (midnight UTC).
func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apierrors.InvalidArgumentf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
}

func parseIntParam(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.InvalidArgumentf("%s must be an integer", name)
	}
	return n, nil
}

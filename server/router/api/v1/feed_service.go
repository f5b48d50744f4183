package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/secondbrain/plugin/markdown"
	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/middleware"
	"github.com/hrygo/secondbrain/server/service/content"
	"github.com/hrygo/secondbrain/store"
)

const (
	feedItemLimit      = 20
	feedTitleMaxLength = 64
)

// GetFeed renders the owner's latest items as RSS 2.0.
// GET /api/v1/feed.rss
func (s *APIV1Service) GetFeed(c echo.Context) error {
	owner := middleware.OwnerFromContext(c)
	items, err := s.ContentService.List(c.Request().Context(), owner, content.ListFilter{Limit: feedItemLimit})
	if err != nil {
		return err
	}

	rss, err := s.generateRSS(owner, items)
	if err != nil {
		return apierrors.Internal("failed to render feed", err)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.String(http.StatusOK, rss)
}

func (s *APIV1Service) generateRSS(owner string, items []*store.ContentItem) (string, error) {
	baseURL := strings.TrimRight(s.Profile.InstanceURL, "/")
	feed := &feeds.Feed{
		Title:       "secondbrain",
		Link:        &feeds.Link{Href: baseURL},
		Description: fmt.Sprintf("Latest items saved by %s", owner),
		Created:     time.Now(),
	}
	if len(items) > 0 {
		feed.Created = time.Unix(items[0].CreatedTs, 0)
	}

	feed.Items = make([]*feeds.Item, 0, len(items))
	for _, item := range items {
		description, err := markdown.RenderHTML(item.Body)
		if err != nil {
			slog.Warn("failed to render item body for feed", "itemID", item.ID, "error", err)
			description = item.Body
		}
		link := item.SourceURL
		if link == "" {
			link = fmt.Sprintf("%s/api/v1/items/%s", baseURL, item.ID)
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          item.ID,
			Title:       feedItemTitle(item),
			Link:        &feeds.Link{Href: link},
			Description: description,
			Created:     time.Unix(item.CreatedTs, 0),
		})
	}
	return feed.ToRss()
}

// feedItemTitle falls back to the start of the plain-text body for untitled items.
func feedItemTitle(item *store.ContentItem) string {
	if item.Title != "" {
		return item.Title
	}
	text := strings.Join(strings.Fields(markdown.PlainText(item.Body)), " ")
	if text == "" {
		return string(item.Kind)
	}
	runes := []rune(text)
	if len(runes) > feedTitleMaxLength {
		return string(runes[:feedTitleMaxLength]) + "..."
	}
	return text
}

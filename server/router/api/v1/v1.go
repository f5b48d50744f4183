package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/secondbrain/internal/profile"
	"github.com/hrygo/secondbrain/plugin/ai/cache"
	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/internal/observability"
	"github.com/hrygo/secondbrain/server/middleware"
	"github.com/hrygo/secondbrain/server/retrieval"
	"github.com/hrygo/secondbrain/server/service/content"
	"github.com/hrygo/secondbrain/server/service/highlight"
)

// APIV1Service serves the JSON API under /api/v1.
type APIV1Service struct {
	Profile        *profile.Profile
	ContentService *content.Service
	Ranker         *retrieval.HybridRanker
	// EmbeddingCache is optional; its stats are reported by the metrics endpoint.
	EmbeddingCache *cache.CachedEmbeddingService

	rateLimiter *middleware.RateLimiter
	highlighter *highlight.Highlighter
	logger      *slog.Logger
}

// NewAPIV1Service creates the API service.
func NewAPIV1Service(profile *profile.Profile, contentService *content.Service, ranker *retrieval.HybridRanker, rateLimiter *middleware.RateLimiter) *APIV1Service {
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter()
	}
	return &APIV1Service{
		Profile:        profile,
		ContentService: contentService,
		Ranker:         ranker,
		rateLimiter:    rateLimiter,
		highlighter:    highlight.New(0),
		logger:         slog.Default(),
	}
}

// RegisterRoutes registers the health check and all /api/v1 routes.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.HTTPErrorHandler = s.errorHandler
	echoServer.GET("/healthz", s.Healthz)

	api := echoServer.Group("/api/v1")
	api.Use(echomiddleware.CORS())
	api.Use(middleware.OwnerMiddleware(s.logger))
	api.Use(s.rateLimiter.Middleware())

	api.POST("/items", s.CreateItem)
	api.GET("/items", s.ListItems)
	api.GET("/items/:id", s.GetItem)
	api.DELETE("/items/:id", s.DeleteItem)
	api.POST("/search", s.Search)
	api.GET("/search/title", s.SearchTitle)
	api.GET("/feed.rss", s.GetFeed)
	api.GET("/metrics", s.GetMetrics)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Healthz reports liveness.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.Profile.Version})
}

type errorResponse struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// errorHandler writes {code, message} for every error returned by a handler.
func (s *APIV1Service) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *apierrors.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = fromHTTPError(httpErr)
	default:
		apiErr = apierrors.Internal("internal error", err)
	}

	status := apiErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		reqCtx := observability.FromContextOrNew(c.Request().Context(), "http", middleware.OwnerFromContext(c))
		reqCtx.Error("request failed", err,
			slog.String(observability.LogFieldErrorCode, string(apiErr.Code)),
			slog.String("path", c.Path()),
		)
	}

	message := apiErr.Message
	if apiErr.Code == apierrors.ErrCodeInternal {
		message = "internal error"
	}
	body := errorResponse{Code: apiErr.Code, Message: message}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}

func fromHTTPError(e *echo.HTTPError) *apierrors.Error {
	message := http.StatusText(e.Code)
	if m, ok := e.Message.(string); ok && m != "" {
		message = m
	}
	switch e.Code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apierrors.Wrap(e, apierrors.ErrCodeInvalidArgument, message)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apierrors.Wrap(e, apierrors.ErrCodeNotFound, message)
	case http.StatusTooManyRequests:
		return apierrors.Wrap(e, apierrors.ErrCodeRateLimitExceeded, message)
	case http.StatusServiceUnavailable:
		return apierrors.Wrap(e, apierrors.ErrCodeUpstreamUnavailable, message)
	default:
		return apierrors.Wrap(e, apierrors.ErrCodeInternal, message)
	}
}

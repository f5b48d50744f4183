package middleware

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/internal/observability"
)

// OwnerHeader carries the authenticated owner id set by the upstream auth proxy.
const OwnerHeader = "X-Owner-Id"

const ownerContextKey = "secondbrain.owner_id"

// maxOwnerIDLength bounds the header value.
const maxOwnerIDLength = 128

// OwnerMiddleware requires the owner header and attaches a request context for logging.
func OwnerMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := strings.TrimSpace(c.Request().Header.Get(OwnerHeader))
			if owner == "" {
				return apierrors.InvalidArgument("missing " + OwnerHeader + " header")
			}
			if len(owner) > maxOwnerIDLength {
				return apierrors.InvalidArgumentf("%s header exceeds %d characters", OwnerHeader, maxOwnerIDLength)
			}
			c.Set(ownerContextKey, owner)

			reqCtx := observability.NewRequestContext(logger, "http", owner)
			if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
				reqCtx.RequestID = id
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)
			ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// OwnerFromContext returns the owner id set by OwnerMiddleware, or "".
func OwnerFromContext(c echo.Context) string {
	owner, _ := c.Get(ownerContextKey).(string)
	return owner
}

package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clipcast/clipcast/internal/domain"
)

var tracer = otel.Tracer("auth")

// IdentifyViewer lifts the viewer identity, resolved by the gateway ahead of
// this service, from the request header into the context. Requests without a
// header proceed anonymously.
func IdentifyViewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyViewer")
		defer span.End()

		viewerID := c.Request().Header.Get(domain.ViewerIdHeader)
		if viewerID != "" {
			ctx = context.WithValue(ctx, domain.ViewerIdCtxKey, viewerID)
			span.SetAttributes(attribute.String("ViewerId", viewerID))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

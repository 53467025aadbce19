package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/pxsession/internal/platform/correlation"
)

// correlationMiddleware tags each request context with the caller's
// correlation id, or a fresh one, and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := correlation.With(req.Context(), req.Header.Get(correlation.Header), "http")
		id, _ := correlation.ID(ctx)
		c.Response().Header().Set(correlation.Header, id)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

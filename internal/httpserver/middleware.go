package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/platform/correlation"
)

// correlationHeader lets a caller supply its own id so one upload can be
// traced across client retries. The response always echoes the id used.
const correlationHeader = "X-Correlation-ID"

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlationHeader, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

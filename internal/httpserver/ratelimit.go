package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Uploads are throttled per client IP. Idle clients age out of the store
// after uploadLimiterIdle.
const uploadLimiterIdle = 5 * time.Minute

func newUploadLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: uploadLimiterIdle,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:               store,
		IdentifierExtractor: clientIP,
		DenyHandler:         denyUpload,
	})
}

func clientIP(c echo.Context) (string, error) {
	return c.RealIP(), nil
}

func denyUpload(c echo.Context, identifier string, _ error) error {
	slog.InfoContext(c.Request().Context(), "Upload rate limit hit", "client", identifier)
	c.Response().Header().Set(echo.HeaderRetryAfter, "1")
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

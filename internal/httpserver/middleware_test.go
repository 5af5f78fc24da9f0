package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkDM/whisper-aws-serverless/internal/platform/correlation"
)

func TestCorrelationMiddlewareAttachesID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID string
	handler := correlationMiddleware(func(c echo.Context) error {
		id, ok := correlation.ID(c.Request().Context())
		require.True(t, ok, "request context should carry a correlation id")
		gotID = id
		return nil
	})

	require.NoError(t, handler(c))
	assert.Len(t, gotID, 8, "correlation ids are 8 hex characters")
	assert.Equal(t, gotID, rec.Header().Get("X-Correlation-ID"), "response echoes the id")
}

func TestCorrelationMiddlewareHonorsCallerID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := correlationMiddleware(func(c echo.Context) error {
		id, _ := correlation.ID(c.Request().Context())
		assert.Equal(t, "caller-supplied", id)
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "caller-supplied", rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddlewareFreshIDPerRequest(t *testing.T) {
	e := echo.New()

	ids := make(map[string]struct{})
	handler := correlationMiddleware(func(c echo.Context) error {
		id, _ := correlation.ID(c.Request().Context())
		ids[id] = struct{}{}
		return nil
	})

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		require.NoError(t, handler(c))
	}

	assert.Len(t, ids, 5, "each request gets its own id")
}

package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPErrorsTotal counts handled request errors by error type.
var HTTPErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_errors_total",
		Help: "Total HTTP errors by error type",
	},
	[]string{"type"},
)

// typeForStatus maps status codes raised by echo's own middleware (body
// limit, timeouts) onto error types, so those failures count in the same
// metric buckets as handler errors.
var typeForStatus = map[int]ErrorType{
	http.StatusBadRequest:            TypeValidation,
	http.StatusRequestEntityTooLarge: TypeValidation,
	http.StatusNotFound:              TypeNotFound,
	http.StatusConflict:              TypeConflict,
	http.StatusServiceUnavailable:    TypeUnavailable,
	http.StatusBadGateway:            TypeExternal,
}

// Middleware converts handler errors into JSON responses, logging and
// counting them by type. Echo's *HTTPError values pass through untouched so
// built-in middleware keeps control of its own status codes.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				HTTPErrorsTotal.WithLabelValues(string(WrapHTTPError(httpErr).Type)).Inc()
				return err
			}

			structured := AsStructuredError(err)
			HTTPErrorsTotal.WithLabelValues(string(structured.Type)).Inc()
			logError(c, structured)

			if err := c.JSON(structured.HTTPStatus(), structured.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// logError logs through the request context so the correlation id travels
// with the record. Client mistakes log at info, capacity refusals at warn,
// anything server-side at error.
func logError(c echo.Context, err *Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	level := slog.LevelError
	switch err.Type {
	case TypeValidation, TypeNotFound:
		level = slog.LevelInfo
	case TypeConflict, TypeUnavailable:
		level = slog.LevelWarn
	}
	slog.Log(c.Request().Context(), level, "Request failed", attrs...)
}

// WrapHTTPError converts echo's HTTPError into a structured error.
func WrapHTTPError(httpErr *echo.HTTPError) *Error {
	message := "internal server error"
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	errType, ok := typeForStatus[httpErr.Code]
	if !ok {
		errType = TypeInternal
	}

	wrapped := newError(errType, message, nil)
	wrapped.Cause = httpErr.Internal
	return wrapped
}

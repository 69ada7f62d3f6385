package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ml-edge-proxy/internal/model"
	"ml-edge-proxy/internal/service"
)

// writeError renders the uniform error body.
func writeError(c echo.Context, status int, title, details string, now time.Time) error {
	return c.JSON(status, model.ErrorBody{
		Error:     title,
		Status:    status,
		Details:   details,
		Timestamp: model.Timestamp(now),
	})
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders every error escaping a
// handler or middleware (router 404/405, body limit, rate limit, recovered panics) as
// the uniform JSON error body. Non-HTTP errors become 500 Internal Server Error.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		title := http.StatusText(status)
		details := service.SanitizeError(err)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			title = http.StatusText(status)
			details = fmt.Sprint(he.Message)
			if he.Internal != nil {
				details = fmt.Sprintf("%s: %s", details, service.SanitizeError(he.Internal))
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				"err", service.SanitizeError(err),
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		}

		if c.Request().Method == http.MethodHead {
			if werr := c.NoContent(status); werr != nil {
				logger.Error("writing error response", "err", werr)
			}
			return
		}
		if werr := writeError(c, status, title, details, time.Now()); werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}

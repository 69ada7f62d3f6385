package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"ml-edge-proxy/internal/model"
	"ml-edge-proxy/internal/service"
)

// serviceName identifies the proxy in health reports.
const serviceName = "ml-edge-proxy"

const configHint = "set upstream.base_url in the config file or ML_SERVICE_URL in the environment"

// ProxyHandler serves the /api surface: the health report on the API root and
// pass-through forwarding to the ML service for everything below it.
type ProxyHandler struct {
	service *service.ProxyService
	version Version
	logger  *slog.Logger
	now     func() time.Time
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, v Version, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		version: v,
		logger:  logger.With("component", "proxy_handler"),
		now:     time.Now,
	}
}

// Handle dispatches an /api request.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if !h.service.Configured() {
		h.logger.Error("ML service URL not configured", "path", req.URL.Path)
		return writeError(c, http.StatusInternalServerError, service.ErrUpstreamNotConfigured.Error(),
			configHint, h.now())
	}

	if isAPIRoot(req.URL.Path) {
		return h.health(c)
	}

	res, err := h.service.Forward(&model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	h.logger.Debug("upstream replied",
		"path", req.URL.Path,
		"status", res.StatusCode,
		"status_text", res.StatusText,
		"bytes", len(res.Body),
	)

	for key, vals := range res.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	return c.Blob(res.StatusCode, res.ContentType, res.Body)
}

// health reports proxy and ML service status. It always answers 200: a down
// upstream is reported in the body so monitors can parse it uniformly.
func (h *ProxyHandler) health(c echo.Context) error {
	up := h.service.CheckHealth(c.Request().Context())

	report := model.HealthReport{
		Status:    "ok",
		Message:   "Edge proxy API is running",
		Service:   serviceName,
		Version:   string(h.version),
		Timestamp: model.Timestamp(h.now()),
		MLService: up,
	}
	if up.Status != model.MLConnected {
		report.Status = "degraded"
	}

	return c.JSON(http.StatusOK, report)
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	msg := service.SanitizeError(err)
	now := h.now()
	path := c.Request().URL.Path

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		// Body limit exceeded while reading; the central error handler renders it.
		return he
	case errors.Is(err, service.ErrInvalidJSON):
		h.logger.Info("rejected request body", "err", msg, "path", path)
		return writeError(c, http.StatusBadRequest, "Invalid JSON", msg, now)
	case errors.Is(err, service.ErrReadBody):
		h.logger.Warn("reading request body", "err", msg, "path", path)
		return writeError(c, http.StatusBadRequest, "Unreadable Request Body", msg, now)
	case errors.Is(err, service.ErrUpstreamTimeout):
		h.logger.Error("proxy error", "err", msg, "path", path)
		return writeError(c, http.StatusGatewayTimeout, "Request Timeout",
			fmt.Sprintf("ML service did not respond within %dms", h.service.Timeout().Milliseconds()), now)
	case errors.Is(err, service.ErrUpstreamNotConfigured):
		return writeError(c, http.StatusInternalServerError, err.Error(), configHint, now)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		h.logger.Error("proxy error", "err", msg, "path", path)
		return writeError(c, http.StatusBadGateway, "Service Connection Error", msg, now)
	default:
		return err
	}
}

// isAPIRoot reports whether path addresses the API root itself.
func isAPIRoot(path string) bool {
	return strings.TrimRight(path, "/") == service.APIPrefix
}

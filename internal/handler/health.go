package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ml-edge-proxy/internal/config"
	"ml-edge-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the proxy's own liveness and status endpoints. Unlike the
// API root, these never contact the ML service.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusBody struct {
	Status             string `json:"status"`
	Service            string `json:"service"`
	Version            string `json:"version"`
	UpstreamURL        string `json:"upstream_url"`
	UpstreamConfigured bool   `json:"upstream_configured"`
	TimeoutMS          int    `json:"timeout_ms"`
	HealthTimeoutMS    int    `json:"health_timeout_ms"`
	FrontendRedirect   string `json:"frontend_redirect,omitempty"`
}

// Status returns proxy configuration and build information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusBody{
		Status:             "ok",
		Service:            serviceName,
		Version:            string(h.version),
		UpstreamURL:        service.RedactURL(h.cfg.Upstream.BaseURL),
		UpstreamConfigured: h.cfg.Upstream.Configured(),
		TimeoutMS:          h.cfg.Upstream.TimeoutMS,
		HealthTimeoutMS:    h.cfg.Upstream.HealthTimeoutMS,
		FrontendRedirect:   h.cfg.Frontend.RedirectURL,
	})
}

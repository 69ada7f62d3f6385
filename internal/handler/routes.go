package handler

import (
	"github.com/labstack/echo/v4"

	"ml-edge-proxy/internal/frontend"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// OPTIONS is answered by the CORS middleware before routing.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler, front *frontend.Handler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Any("/api", proxy.Handle)
	e.Any("/api/*", proxy.Handle)

	for _, path := range []string{"/", "/index.html"} {
		e.GET(path, front.Index)
		e.HEAD(path, front.Index)
	}
}

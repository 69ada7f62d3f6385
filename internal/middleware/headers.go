package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CORSHeaders is the permissive header set attached to every response.
var CORSHeaders = map[string]string{
	echo.HeaderAccessControlAllowOrigin:      "*",
	echo.HeaderAccessControlAllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	echo.HeaderAccessControlAllowHeaders:     "Content-Type, Authorization, X-Requested-With",
	echo.HeaderAccessControlMaxAge:           "86400",
	echo.HeaderAccessControlAllowCredentials: "false",
}

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CORS returns an Echo middleware that sets CORSHeaders on every response and
// answers any OPTIONS request with 204 and an empty body, whatever the path.
//
// Headers are set before the handler runs so error responses carry them too.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range CORSHeaders {
				h.Set(k, v)
			}

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

// SecurityHeaders returns an Echo middleware that adds security headers
// to responses and strips hop-by-hop headers from requests.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			c.Response().Header().Set("X-Content-Type-Options", "nosniff")
			c.Response().Header().Set("X-Frame-Options", "DENY")

			return next(c)
		}
	}
}

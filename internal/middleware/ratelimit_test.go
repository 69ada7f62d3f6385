package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ml-edge-proxy/internal/middleware"
)

// newLimitedEcho builds the production order: CORS ahead of the rate limiter.
func newLimitedEcho() *echo.Echo {
	e := echo.New()
	e.Use(middleware.CORS())
	// 1 request per second, burst of 1.
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(1))))
	e.GET("/api/symptoms", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestRateLimiter_Enabled(t *testing.T) {
	e := newLimitedEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/symptoms", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	var limited *httptest.ResponseRecorder
	for range 10 {
		req = httptest.NewRequest(http.MethodGet, "/api/symptoms", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
			break
		}
	}
	if limited == nil {
		t.Fatal("expected at least one 429 response after burst, got none")
	}
	if got := limited.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("429 Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestRateLimiter_PreflightNotLimited(t *testing.T) {
	e := newLimitedEcho()

	for i := range 5 {
		req := httptest.NewRequest(http.MethodOptions, "/api/symptoms", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("preflight %d: status = %d, want %d", i, rec.Code, http.StatusNoContent)
		}
	}
}

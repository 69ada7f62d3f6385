// Package frontend serves the proxy's landing page: a redirect to the separately
// deployed web frontend, or an informational page listing the API endpoints.
package frontend

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"ml-edge-proxy/internal/config"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html.tmpl"))

// Endpoint is one API route advertised on the informational page.
type Endpoint struct {
	Method      string
	Path        string
	Description string
}

// Endpoints lists the routes shown on the informational page.
var Endpoints = []Endpoint{
	{http.MethodGet, "/api/", "Health check"},
	{http.MethodGet, "/api/symptoms", "Get symptoms"},
	{http.MethodPost, "/api/predict", "Predict disease"},
}

type pageData struct {
	Title     string
	Service   string
	Version   string
	TestLink  string
	Endpoints []Endpoint
}

// Handler serves GET and HEAD on / and /index.html.
type Handler struct {
	redirectURL string
	page        []byte
}

// New renders the informational page once. When cfg.Frontend.RedirectURL is set the
// page is never served; requests are redirected there instead.
func New(cfg *config.Config, version string) (*Handler, error) {
	var buf bytes.Buffer
	err := pageTemplates.ExecuteTemplate(&buf, "index.html.tmpl", pageData{
		Title:     "Disease Prediction API",
		Service:   "ml-edge-proxy",
		Version:   version,
		TestLink:  "/api/",
		Endpoints: Endpoints,
	})
	if err != nil {
		return nil, fmt.Errorf("render index page: %w", err)
	}

	return &Handler{
		redirectURL: cfg.Frontend.RedirectURL,
		page:        buf.Bytes(),
	}, nil
}

// Index redirects to the configured frontend or writes the informational page.
func (h *Handler) Index(c echo.Context) error {
	if h.redirectURL != "" {
		return c.Redirect(http.StatusFound, h.redirectURL)
	}
	return c.HTMLBlob(http.StatusOK, h.page)
}

// Package model defines shared types for the proxy.
package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ProxyRequest represents a client request to be forwarded to the ML service.
// Path is the inbound path, including the /api prefix.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Path     string
	RawPath  string // encoded form of Path when it differs from the default encoding
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// ProxyResponse is the raw upstream response as returned by the HTTP client.
type ProxyResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       io.ReadCloser
}

// ForwardResult is a fully read upstream reply, ready to relay to the caller.
type ForwardResult struct {
	StatusCode  int
	StatusText  string
	ContentType string
	Header      http.Header
	Body        []byte
}

// ErrorBody is the uniform JSON shape of every error the proxy produces.
type ErrorBody struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

// ML service connectivity states reported by the health check.
const (
	MLConnected    = "connected"
	MLError        = "error"
	MLDisconnected = "disconnected"
)

// UpstreamHealth is the result of probing the ML service health endpoint.
type UpstreamHealth struct {
	URL    string          `json:"url"`
	Status string          `json:"status"`
	Health json.RawMessage `json:"health,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HealthReport is the body served on the API root.
type HealthReport struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	MLService UpstreamHealth `json:"ml_service"`
}

// timestampLayout is ISO-8601 with millisecond precision, matching what browsers emit.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in UTC for JSON bodies.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

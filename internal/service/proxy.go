// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"ml-edge-proxy/internal/client"
	"ml-edge-proxy/internal/config"
	"ml-edge-proxy/internal/metrics"
	"ml-edge-proxy/internal/model"
)

// Errors returned by Forward. Each maps to one status in the handler.
var (
	ErrUpstreamNotConfigured = errors.New("ML service URL not configured")
	ErrInvalidJSON           = errors.New("invalid JSON body")
	ErrReadBody              = errors.New("read request body")
	ErrUpstreamTimeout       = errors.New("upstream request timed out")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
)

// credentialsPattern matches the userinfo part of URLs embedded in error messages.
var credentialsPattern = regexp.MustCompile(`(https?://)[^/@\s"]+@`)

// APIPrefix is the inbound path prefix stripped before forwarding.
const APIPrefix = "/api"

// forwardableRequestHeaders are the only inbound headers passed on to the ML service.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Authorization",
	"X-Request-Id",
}

// forwardableResponseHeaders are the only upstream response headers relayed to the client.
// Content-Type is handled separately so it can be defaulted.
var forwardableResponseHeaders = map[string]bool{
	"Cache-Control": true,
	"Etag":          true,
	"Last-Modified": true,
	"Location":      true,
}

// bodyMethods are the methods whose request body is validated and forwarded.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

const (
	userAgent   = "ml-edge-proxy/1.0"
	contentJSON = "application/json"
)

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client  *client.MLClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL *url.URL // nil when no upstream is configured
}

// NewProxyService creates a ProxyService. A missing upstream URL is not an error here;
// Forward and CheckHealth report it per request instead. The metrics parameter is optional.
func NewProxyService(c *client.MLClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	s := &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
	}

	if cfg.Upstream.BaseURL != "" {
		u, err := url.Parse(cfg.Upstream.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream base_url: %w", err)
		}
		s.baseURL = u
	}

	return s, nil
}

// Configured reports whether an upstream base URL is available.
func (s *ProxyService) Configured() bool {
	return s.baseURL != nil
}

// UpstreamURL returns the configured upstream base URL, or empty string.
func (s *ProxyService) UpstreamURL() string {
	if s.baseURL == nil {
		return ""
	}
	return s.baseURL.String()
}

// Timeout returns the deadline applied to forwarded requests.
func (s *ProxyService) Timeout() time.Duration {
	return s.cfg.Upstream.Timeout()
}

// Forward validates a ProxyRequest, sends it to the ML service and reads the full reply.
//
// The request body is read (bodies of POST, PUT and PATCH only) and checked for well-formed
// JSON before any network call. The upstream exchange, body included, is bounded by
// upstream.timeout_ms. Errors wrap one of the package sentinels.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ForwardResult, error) {
	if s.baseURL == nil {
		return nil, ErrUpstreamNotConfigured
	}

	var body []byte
	if bodyMethods[pr.Method] && pr.Body != nil {
		b, err := io.ReadAll(pr.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadBody, err)
		}
		if len(b) > 0 && !json.Valid(b) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, describeJSONError(b))
		}
		body = b
	}

	upstreamURL := s.buildUpstreamURL(pr.Path, pr.RawPath, pr.RawQuery)
	header := s.filterRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
	)

	ctx, cancel := context.WithTimeout(pr.Ctx, s.cfg.Upstream.Timeout())
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	resp, err := s.client.DoStream(ctx, pr.Method, upstreamURL, header, reqBody)
	if err != nil {
		return nil, s.classify(ctx, pr.Ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.classify(ctx, pr.Ctx, fmt.Errorf("read upstream body: %w", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentJSON
	}

	return &model.ForwardResult{
		StatusCode:  resp.StatusCode,
		StatusText:  resp.StatusText,
		ContentType: contentType,
		Header:      s.filterResponseHeaders(resp.Header),
		Body:        data,
	}, nil
}

// CheckHealth probes GET <upstream>/health, bounded by upstream.health_timeout_ms.
// It never fails: unreachable or malformed upstreams are reported as disconnected.
func (s *ProxyService) CheckHealth(ctx context.Context) model.UpstreamHealth {
	h := model.UpstreamHealth{URL: RedactURL(s.UpstreamURL())}
	if s.baseURL == nil {
		h.Status = model.MLDisconnected
		h.Error = ErrUpstreamNotConfigured.Error()
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upstream.HealthTimeout())
	defer cancel()

	h.Status, h.Health, h.Error = s.probe(ctx)
	if s.metrics != nil {
		s.metrics.HealthChecks.WithLabelValues(h.Status).Inc()
	}
	return h
}

func (s *ProxyService) probe(ctx context.Context) (status string, payload json.RawMessage, errMsg string) {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/health"

	header := http.Header{}
	header.Set("Content-Type", contentJSON)
	header.Set("User-Agent", userAgent)

	resp, err := s.client.DoStream(ctx, http.MethodGet, u.String(), header, nil)
	if err != nil {
		s.logger.Warn("health probe failed", "err", SanitizeError(err))
		return model.MLDisconnected, nil, SanitizeError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.MLDisconnected, nil, SanitizeError(err)
	}
	if !json.Valid(data) {
		err := describeJSONError(data)
		s.logger.Warn("health probe returned non-JSON body", "status", resp.StatusCode, "err", err)
		return model.MLDisconnected, nil, "health endpoint returned invalid JSON: " + err.Error()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.MLConnected, data, ""
	}
	return model.MLError, data, ""
}

// classify maps a transport error to ErrUpstreamTimeout or ErrUpstreamUnavailable.
// callCtx carries the upstream deadline; parent is the inbound request context.
func (s *ProxyService) classify(callCtx, parent context.Context, err error) error {
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		timedOut = true
	}

	// A client that went away is not an upstream timeout.
	kind, sentinel := "unreachable", ErrUpstreamUnavailable
	if timedOut && parent.Err() == nil {
		kind, sentinel = "timeout", ErrUpstreamTimeout
	}

	if s.metrics != nil {
		s.metrics.UpstreamFailures.WithLabelValues(kind).Inc()
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// buildUpstreamURL strips the API prefix from path and joins it onto the base URL,
// keeping any path prefix the base URL already has. rawPath is the inbound encoded
// path, if any; it keeps escapes such as %2F from turning into path separators.
func (s *ProxyService) buildUpstreamURL(path, rawPath, rawQuery string) string {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + stripAPIPrefix(path)
	u.RawPath = ""
	if rawPath != "" {
		u.RawPath = strings.TrimRight(s.baseURL.EscapedPath(), "/") + stripAPIPrefix(rawPath)
	}
	u.RawQuery = rawQuery

	return u.String()
}

func stripAPIPrefix(path string) string {
	rest := strings.TrimPrefix(path, APIPrefix)
	if rest != "" && rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}

func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	dst.Set("Content-Type", contentJSON)
	dst.Set("User-Agent", userAgent)
	return dst
}

func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}

// describeJSONError returns the decoder's complaint about a malformed JSON document.
func describeJSONError(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return errors.New("malformed JSON")
}

// SanitizeError redacts URL credentials from error messages that may contain upstream URLs.
func SanitizeError(err error) string {
	return RedactURL(err.Error())
}

// RedactURL replaces the userinfo of any http(s) URL in s.
func RedactURL(s string) string {
	return credentialsPattern.ReplaceAllString(s, "${1}[REDACTED]@")
}

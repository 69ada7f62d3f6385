package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Go runtime and process collectors are always present.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	// Vec collectors only show up once a label set has been observed.
	m.RequestsTotal.WithLabelValues("GET", "200", "/api").Inc()
	m.UpstreamFailures.WithLabelValues("timeout").Inc()
	m.HealthChecks.WithLabelValues("connected").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"ml_edge_proxy_http_requests_total":     false,
		"ml_edge_proxy_upstream_failures_total": false,
		"ml_edge_proxy_health_checks_total":     false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PATCH", "PATCH"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := NormalizeMethod(tt.method); got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api", "/api"},
		{"/api/", "/api"},
		{"/api/predict", "/api"},
		{"/api/symptoms?q=fev", "/api"},
		{"/apix", "other"},
		{"/healthz", "/healthz"},
		{"/proxy/status", "/proxy/status"},
		{"/metrics", "other"},
		{"/index.html", "/index.html"},
		{"/", "/"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizePath_Extra(t *testing.T) {
	tests := []struct {
		path  string
		extra []string
		want  string
	}{
		{"/metrics", []string{"/metrics"}, "/metrics"},
		{"/internal/prom", []string{"/internal/prom"}, "/internal/prom"},
		{"/internal/prom/x", []string{"/internal/prom"}, "/internal/prom"},
		{"/internal/promx", []string{"/internal/prom"}, "other"},
		{"/metrics", []string{"/internal/prom"}, "other"},
		{"/api/predict", []string{"/internal/prom"}, "/api"},
		{"/anything", []string{""}, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path, tt.extra...); got != tt.want {
				t.Errorf("NormalizePath(%q, %v) = %q, want %q", tt.path, tt.extra, got, tt.want)
			}
		})
	}
}

package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func fixed(section string, s Status, hint string) Check {
	return Check{
		Section: section,
		Name:    s.String(),
		Hint:    hint,
		Run:     func(context.Context) Outcome { return Outcome{s, s.String()} },
	}
}

func TestFileAndDirChecks(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "package.json", "{}")
	ctx := context.Background()

	assert.Equal(t, Pass, FileCheck("s", "package.json", "", file).Run(ctx).Status)
	assert.Equal(t, Fail, FileCheck("s", "wrangler.toml", "", filepath.Join(dir, "wrangler.toml")).Run(ctx).Status)

	assert.Equal(t, Pass, DirCheck("s", "root", "", dir).Run(ctx).Status)
	assert.Equal(t, Fail, DirCheck("s", "file", "", file).Run(ctx).Status, "a regular file is not a directory")
	assert.Equal(t, Fail, DirCheck("s", "public", "", filepath.Join(dir, "public")).Run(ctx).Status)

	out := FileCheck("s", "wrangler.toml", "", filepath.Join(dir, "wrangler.toml")).Run(ctx)
	assert.Equal(t, "wrangler.toml NOT found", out.Message)
}

func TestContentCheck(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "public/index.html", `<script>const API = "/api";</script>`)
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		text string
		want Status
	}{
		{"contains", page, "API", Pass},
		{"missing text", page, "PAGES_URL", Warn},
		{"unreadable", filepath.Join(dir, "missing.html"), "API", Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentCheck("Frontend", "Frontend API configuration", "", tt.path, tt.text).Run(ctx)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestJSONKeyCheck(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		want    Status
	}{
		{"present", `{"devDependencies":{"wrangler":"^3.0.0"}}`, Pass},
		{"missing key", `{"devDependencies":{"vite":"^5.0.0"}}`, Warn},
		{"missing parent", `{"name":"app"}`, Warn},
		{"parent not an object", `{"devDependencies":"wrangler"}`, Warn},
		{"malformed", `{"devDependencies":`, Fail},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, filepath.Join(string(rune('a'+i)), "package.json"), tt.content)
			got := JSONKeyCheck("Dependencies", "Wrangler", "", path, "devDependencies.wrangler").Run(ctx)
			assert.Equal(t, tt.want, got.Status, got.Message)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		got := JSONKeyCheck("Dependencies", "Wrangler", "", filepath.Join(dir, "nope.json"), "a").Run(ctx)
		assert.Equal(t, Fail, got.Status)
	})
}

func TestCommandChecks(t *testing.T) {
	ctx := context.Background()
	self, err := os.Executable()
	require.NoError(t, err)
	const missing = "ml-edge-proxy-no-such-binary"

	// Rerunning the test binary with a pattern matching no tests exits 0.
	ok := CommandCheck("Prerequisites", "self", "", self, "-test.run=^$").Run(ctx)
	assert.Equal(t, Pass, ok.Status)
	assert.Equal(t, "self is installed", ok.Message)

	bad := CommandCheck("Prerequisites", "Wrangler CLI", "", missing, "--version").Run(ctx)
	assert.Equal(t, Fail, bad.Status)
	assert.Equal(t, "Wrangler CLI is NOT installed", bad.Message)

	warn := WarnCommandCheck("Authentication", "auth", "", "authenticated", "not authenticated", missing, "whoami").Run(ctx)
	assert.Equal(t, Warn, warn.Status)
	assert.Equal(t, "not authenticated", warn.Message)
}

func TestRun_PreservesOrderAndLimit(t *testing.T) {
	const limit = 2
	var running, peak atomic.Int32

	checks := make([]Check, 8)
	for i := range checks {
		checks[i] = Check{
			Section: "s",
			Name:    string(rune('a' + i)),
			Run: func(context.Context) Outcome {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				// Later checks finish first so ordering cannot come from completion order.
				time.Sleep(time.Duration(len(checks)-i) * 5 * time.Millisecond)
				running.Add(-1)
				return Outcome{Pass, string(rune('a' + i))}
			},
		}
	}

	report := Run(context.Background(), checks, limit)

	require.Len(t, report.Results, len(checks))
	for i, res := range report.Results {
		assert.Equal(t, checks[i].Name, res.Check.Name)
		assert.Equal(t, checks[i].Name, res.Outcome.Message)
	}
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestReport_Summary(t *testing.T) {
	report := Report{Results: []Result{
		{Check: fixed("a", Pass, ""), Outcome: Outcome{Pass, "ok"}},
		{Check: fixed("a", Warn, "check auth"), Outcome: Outcome{Warn, "w"}},
		{Check: fixed("b", Fail, "install node"), Outcome: Outcome{Fail, "f1"}},
		{Check: fixed("b", Fail, "install node"), Outcome: Outcome{Fail, "f2"}},
		{Check: fixed("b", Fail, ""), Outcome: Outcome{Fail, "f3"}},
	}}

	assert.Equal(t, 3, report.Issues())
	assert.Equal(t, 1, report.Warnings())
	assert.Equal(t, 1, report.ExitCode())
	assert.Equal(t, []string{"install node"}, report.Hints())

	warnOnly := Report{Results: report.Results[:2]}
	assert.Equal(t, 0, warnOnly.ExitCode())
	assert.Empty(t, warnOnly.Hints())
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		checks   []Check
		contains []string
		absent   []string
	}{
		{
			name:     "all passed",
			checks:   []Check{fixed(SectionPrerequisites, Pass, "")},
			contains: []string{"Checking Prerequisites...", "✓ pass", "All checks passed!"},
			absent:   []string{"Quick fixes"},
		},
		{
			name: "warnings only",
			checks: []Check{
				fixed(SectionPrerequisites, Pass, ""),
				fixed(SectionAuth, Warn, "Run: wrangler login"),
			},
			contains: []string{"⚠ warn", "Run: wrangler login", "No critical issues found", "1 warning(s)"},
			absent:   []string{"Quick fixes"},
		},
		{
			name: "failures",
			checks: []Check{
				fixed(SectionPrerequisites, Fail, "Install Node.js 18+"),
				fixed(SectionAuth, Warn, ""),
			},
			contains: []string{"✗ fail", "Found 1 critical issue(s)", "Found 1 warning(s)", "Quick fixes:", "1. Install Node.js 18+"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, Run(context.Background(), tt.checks, 1)))

			out := buf.String()
			assert.NotContains(t, out, "\x1b[", "no ANSI escapes when not writing to a terminal")
			assert.Contains(t, out, "VALIDATION SUMMARY")
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRender_SectionsGrouped(t *testing.T) {
	var buf bytes.Buffer
	report := Run(context.Background(), []Check{
		fixed(SectionStructure, Pass, ""),
		fixed(SectionStructure, Pass, ""),
		fixed(SectionFrontend, Pass, ""),
	}, 0)
	require.NoError(t, Render(&buf, report))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Checking Project Structure..."))
	assert.Less(t, strings.Index(out, "Checking Project Structure..."), strings.Index(out, "Checking Frontend..."))
}

func TestDefaultChecks_SectionOrder(t *testing.T) {
	want := []string{
		SectionPrerequisites, SectionStructure, SectionConfig, SectionAuth,
		SectionDependencies, SectionFrontend, SectionEnvTemplate,
	}

	var got []string
	for _, c := range DefaultChecks(t.TempDir()) {
		if len(got) == 0 || got[len(got)-1] != c.Section {
			got = append(got, c.Section)
		}
		assert.NotNil(t, c.Run, c.Name)
	}
	assert.Equal(t, want, got)
}

func TestValidateProxyConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is a warning", func(t *testing.T) {
		chk := FuncCheck(SectionConfig, "proxy config", "", "ok", func(context.Context) error {
			return validateProxyConfig(filepath.Join(dir, "none.toml"))
		})
		assert.Equal(t, Warn, chk.Run(context.Background()).Status)
	})

	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, dir, "valid.toml", "[upstream]\nbase_url = \"https://ml.example.com\"\n")
		assert.NoError(t, validateProxyConfig(path))
	})

	t.Run("invalid upstream", func(t *testing.T) {
		path := writeFile(t, dir, "invalid.toml", "[upstream]\nbase_url = \"ftp://ml.example.com\"\n")
		assert.Error(t, validateProxyConfig(path))
	})
}

func TestExecute_EmptyProject(t *testing.T) {
	var buf bytes.Buffer
	code, err := Execute(context.Background(), &buf, &CLI{Root: t.TempDir(), Concurrency: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "package.json NOT found")
	assert.Contains(t, buf.String(), "Initialize npm project: npm init -y")
}

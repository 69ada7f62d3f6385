package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ml-edge-proxy/internal/config"
)

// Checklist sections, in report order.
const (
	SectionPrerequisites = "Prerequisites"
	SectionStructure     = "Project Structure"
	SectionConfig        = "Configuration Files"
	SectionAuth          = "Authentication"
	SectionDependencies  = "Dependencies"
	SectionFrontend      = "Frontend"
	SectionEnvTemplate   = "Environment Template"
)

// DefaultChecks returns the deployment checklist for the project rooted at root:
// the static frontend deployed with wrangler plus the proxy's own configuration.
func DefaultChecks(root string) []Check {
	p := func(elem ...string) string {
		return filepath.Join(append([]string{root}, elem...)...)
	}
	proxyConfig := p("configs", "config.toml")

	return []Check{
		CommandCheck(SectionPrerequisites, "Node.js", "Install Node.js 18+: https://nodejs.org/", "node", "--version"),
		CommandCheck(SectionPrerequisites, "npm", "Install npm together with Node.js: https://nodejs.org/", "npm", "--version"),
		CommandCheck(SectionPrerequisites, "Wrangler CLI", "Install Wrangler: npm install -g wrangler", "wrangler", "--version"),

		FileCheck(SectionStructure, "package.json", "Initialize npm project: npm init -y", p("package.json")),
		FileCheck(SectionStructure, "wrangler.toml", "Create wrangler.toml for the Pages project", p("wrangler.toml")),
		DirCheck(SectionStructure, "public", "Create public/ holding the frontend build", p("public")),
		DirCheck(SectionStructure, "configs", "Create configs/ and copy configs/config.example.toml into it", p("configs")),

		FuncCheck(SectionConfig, "proxy config", "Fix configs/config.toml; see configs/config.example.toml",
			"proxy config is valid", func(context.Context) error {
				return validateProxyConfig(proxyConfig)
			}),
		FileCheck(SectionConfig, ".gitignore", "Add a .gitignore that excludes .env files", p(".gitignore")),

		WarnCommandCheck(SectionAuth, "Wrangler authentication", "Run: wrangler login",
			"Wrangler is authenticated with Cloudflare", "Wrangler authentication not found",
			"wrangler", "whoami"),

		JSONKeyCheck(SectionDependencies, "Wrangler", "Run: npm install --save-dev wrangler",
			p("package.json"), "devDependencies.wrangler"),

		ContentCheck(SectionFrontend, "Frontend API configuration", "Point the frontend at the proxy's /api routes",
			p("public", "index.html"), "API"),

		FileCheck(SectionEnvTemplate, "Environment config template", "Create .env.example listing ML_SERVICE_URL and PAGES_URL",
			p(".env.example")),
	}
}

// validateProxyConfig loads path the way the serve command does. A missing file is
// only a warning since the proxy can run from environment variables alone.
func validateProxyConfig(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return skipError{msg: "no proxy config file; defaults and environment will be used"}
	}
	_, err := config.Load(&config.CLI{Config: path})
	return err
}

// CLI holds command-line arguments parsed by Kong for the check command.
type CLI struct {
	Root        string `kong:"default='.',help='Project root to validate.',type='existingdir'"`
	Concurrency int    `kong:"default='4',help='Number of checks run at once.'"`
}

// Execute runs the default checklist for cli.Root, writes the report to w and
// returns the process exit code.
func Execute(ctx context.Context, w io.Writer, cli *CLI) (int, error) {
	report := Run(ctx, DefaultChecks(cli.Root), cli.Concurrency)
	if err := Render(w, report); err != nil {
		return 1, fmt.Errorf("write report: %w", err)
	}
	return report.ExitCode(), nil
}

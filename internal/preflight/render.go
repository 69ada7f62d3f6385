package preflight

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ruleWidth = 50
	title     = "ml-edge-proxy Deployment Validator"
)

type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	pass    lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds styles to w so color is only emitted when w is a color terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:  r.NewStyle().Bold(true),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A8D8EA")),
		pass:    r.NewStyle().Foreground(lipgloss.Color("#4ECDC4")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#FFE66D")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6c757d")),
	}
}

// Render writes a human-readable report grouped by section, followed by the summary
// and, when checks failed, their fix hints.
func Render(w io.Writer, r Report) error {
	st := newStyles(w)
	rule := strings.Repeat("=", ruleWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, st.header.Render(title), rule)

	section := ""
	for _, res := range r.Results {
		if res.Check.Section != section {
			section = res.Check.Section
			fmt.Fprintf(&b, "\n%s\n", st.section.Render("Checking "+section+"..."))
		}

		var mark string
		switch res.Outcome.Status {
		case Pass:
			mark = st.pass.Render("✓")
		case Warn:
			mark = st.warn.Render("⚠")
		default:
			mark = st.fail.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, res.Outcome.Message)
		if res.Outcome.Status == Warn && res.Check.Hint != "" {
			fmt.Fprintf(&b, "    %s\n", st.muted.Render(res.Check.Hint))
		}
	}

	fmt.Fprintf(&b, "\n%s\n%s\n%s\n\n", rule, st.header.Render("VALIDATION SUMMARY"), rule)

	issues, warnings := r.Issues(), r.Warnings()
	switch {
	case issues == 0 && warnings == 0:
		b.WriteString(st.pass.Render("All checks passed! Your setup is ready for deployment.") + "\n")
	case issues == 0:
		b.WriteString(st.pass.Render("✓ No critical issues found") + "\n")
		b.WriteString(st.warn.Render(fmt.Sprintf("⚠ %d warning(s) - recommended to review", warnings)) + "\n")
	default:
		b.WriteString(st.fail.Render(fmt.Sprintf("✗ Found %d critical issue(s)", issues)) + "\n")
		b.WriteString(st.warn.Render(fmt.Sprintf("⚠ Found %d warning(s)", warnings)) + "\n")
		if hints := r.Hints(); len(hints) > 0 {
			b.WriteString("\nQuick fixes:\n")
			for i, h := range hints {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, h)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

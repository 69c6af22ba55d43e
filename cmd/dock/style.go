package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/zulandar/drydock/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// styler renders with lipgloss only when writing to a terminal, so piped
// output stays plain.
type styler struct {
	color bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (s styler) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func (s styler) heading(text string) string { return s.render(headingStyle, text) }
func (s styler) dim(text string) string     { return s.render(dimStyle, text) }

func (s styler) severity(sev string) string {
	switch sev {
	case models.SeverityError:
		return s.render(errorStyle, "ERROR")
	case models.SeverityWarning:
		return s.render(warnStyle, "WARN")
	}
	return sev
}

func (s styler) verdict(valid bool) string {
	if valid {
		return s.render(okStyle, "VALID")
	}
	return s.render(errorStyle, "INVALID")
}

// width is the terminal width, or 100 when not attached to one.
func width(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			return cols
		}
	}
	return 100
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

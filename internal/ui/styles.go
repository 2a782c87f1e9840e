package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles colors status words when writing to a terminal and passes text
// through unchanged otherwise.
type Styles struct {
	enabled bool
	good    lipgloss.Style
	bad     lipgloss.Style
	dim     lipgloss.Style
	title   lipgloss.Style
}

// NewStyles returns styles enabled only when out is a terminal.
func NewStyles(out io.Writer) Styles {
	return Styles{
		enabled: IsTerminal(out),
		good:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		bad:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		title:   lipgloss.NewStyle().Bold(true),
	}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

func (s Styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s Styles) Good(text string) string  { return s.render(s.good, text) }
func (s Styles) Bad(text string) string   { return s.render(s.bad, text) }
func (s Styles) Dim(text string) string   { return s.render(s.dim, text) }
func (s Styles) Title(text string) string { return s.render(s.title, text) }

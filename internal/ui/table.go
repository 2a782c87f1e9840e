package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows in aligned columns. Widths are measured on visible
// text, so styled cells stay aligned.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	styles  Styles
}

// NewTable creates a table with the given column headers.
func NewTable(out io.Writer, headers ...string) *Table {
	return &Table{out: out, headers: headers, styles: NewStyles(out)}
}

// Styles returns the styles matching the table's output.
func (t *Table) Styles() Styles { return t.styles }

// Row appends a row of values. The number of values should match the number of headers.
func (t *Table) Row(values ...any) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	t.rows = append(t.rows, parts)
}

// Flush writes the header and every buffered row.
func (t *Table) Flush() error {
	widths := make([]int, len(t.headers))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	measure(t.headers)
	for _, r := range t.rows {
		measure(r)
	}

	header := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = t.styles.Title(h)
	}
	if err := t.writeLine(header, widths); err != nil {
		return err
	}
	for _, r := range t.rows {
		if err := t.writeLine(r, widths); err != nil {
			return err
		}
	}
	t.rows = nil
	return nil
}

func (t *Table) writeLine(cells []string, widths []int) error {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(c)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(c)+2))
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(t.out, b.String())
	return err
}

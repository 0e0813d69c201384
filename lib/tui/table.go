// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cell is one table cell. A zero Color renders in the theme's
// NormalText.
type Cell struct {
	Text  string
	Color lipgloss.Color
}

// Text returns an uncolored cell.
func Text(text string) Cell { return Cell{Text: text} }

// Colored returns a cell rendered in color.
func Colored(text string, color lipgloss.Color) Cell {
	return Cell{Text: text, Color: color}
}

// Table accumulates rows and renders them in aligned columns.
type Table struct {
	theme   Theme
	plain   bool
	headers []string
	rows    [][]Cell
}

// NewTable creates a table. With plain set, no ANSI styling is
// emitted and the header rule is ASCII.
func NewTable(theme Theme, plain bool, headers ...string) *Table {
	return &Table{theme: theme, plain: plain, headers: headers}
}

// Row appends a row. Missing trailing cells render empty; extra cells
// are dropped.
func (table *Table) Row(cells ...Cell) {
	row := make([]Cell, len(table.headers))
	copy(row, cells)
	table.rows = append(table.rows, row)
}

// Len returns the number of rows.
func (table *Table) Len() int { return len(table.rows) }

// Render writes the table to w.
func (table *Table) Render(w io.Writer) error {
	widths := make([]int, len(table.headers))
	for column, header := range table.headers {
		widths[column] = lipgloss.Width(header)
	}
	for _, row := range table.rows {
		for column, cell := range row {
			widths[column] = max(widths[column], lipgloss.Width(cell.Text))
		}
	}

	var builder strings.Builder
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(table.theme.HeaderForeground)
	for column, header := range table.headers {
		table.writeCell(&builder, column, widths, header, headerStyle)
	}
	builder.WriteByte('\n')

	total := 0
	for _, width := range widths {
		total += width
	}
	if len(widths) > 1 {
		total += 2 * (len(widths) - 1)
	}
	if table.plain {
		builder.WriteString(strings.Repeat("-", total))
	} else {
		builder.WriteString(lipgloss.NewStyle().Foreground(table.theme.BorderColor).Render(strings.Repeat("─", total)))
	}
	builder.WriteByte('\n')

	for _, row := range table.rows {
		for column, cell := range row {
			color := cell.Color
			if color == "" {
				color = table.theme.NormalText
			}
			table.writeCell(&builder, column, widths, cell.Text, lipgloss.NewStyle().Foreground(color))
		}
		builder.WriteByte('\n')
	}

	_, err := io.WriteString(w, builder.String())
	return err
}

// writeCell pads text to the column width. The last column is not
// padded so lines carry no trailing spaces.
func (table *Table) writeCell(builder *strings.Builder, column int, widths []int, text string, style lipgloss.Style) {
	if column > 0 {
		builder.WriteString("  ")
	}
	if column < len(widths)-1 {
		text += strings.Repeat(" ", widths[column]-lipgloss.Width(text))
	}
	if table.plain {
		builder.WriteString(text)
		return
	}
	builder.WriteString(style.Render(text))
}

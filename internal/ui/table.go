package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// RenderTable renders a non-interactive table string with a bold underlined
// header. Cells wider than their column push the rest of the row right.
func RenderTable(columns []TableColumn, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)
	dividerStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var b strings.Builder

	var header string
	total := 0
	for i, c := range columns {
		if i == len(columns)-1 {
			header += c.Title
			total += max(c.Width, len(c.Title))
			continue
		}
		header += padRight(c.Title, c.Width)
		total += c.Width
	}
	b.WriteString(headerStyle.Render(header) + "\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", total)) + "\n")

	for _, row := range rows {
		var line string
		for i, cell := range row {
			if i >= len(columns) || i == len(row)-1 {
				line += cell
				continue
			}
			line += padRight(cell, columns[i].Width)
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	return b.String()
}

// Swatch renders a color block in the given #rrggbb color.
func Swatch(hex string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(SymbolSwatch)
}

// Success renders a green check followed by msg.
func Success(msg string) string {
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolSuccess) + " " + msg
}

// Muted renders msg in the muted color.
func Muted(msg string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(msg)
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const markdownWidth = 100

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(fmt.Sprint(value))
}

func status(ok bool, yes, no string) string {
	if ok {
		return okStyle.Render(yes)
	}
	return errorStyle.Render(no)
}

func list(items []string) string {
	if len(items) == 0 {
		return dimStyle.Render("-")
	}
	return strings.Join(items, ", ")
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// renderMarkdown renders model output for the terminal. It falls back to the
// plain text if the renderer cannot be built.
func renderMarkdown(text string, plain bool) string {
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(markdownWidth))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

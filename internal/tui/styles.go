// Package tui provides interactive terminal UI components for tracelens.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#06B6D4") // Cyan
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#6B7280") // Gray
)

var (
	// TitleStyle for main titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 2)

	// SectionHeaderStyle for report section headings
	SectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(secondaryColor)

	// MutedStyle for less important text
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// ErrorStyle for error indicators
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// WarningStyle for warnings
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)
)

// Help bar style
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)
)

// GetLineStyle returns the style for one line of a rendered report
func GetLineStyle(line string) lipgloss.Style {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "==="), strings.HasPrefix(trimmed, "---"), strings.HasPrefix(trimmed, "#"):
		return SectionHeaderStyle
	case strings.HasPrefix(trimmed, "Warnings ("), strings.HasPrefix(trimmed, "- trace "):
		return WarningStyle
	case strings.Contains(trimmed, "ERROR:"):
		return ErrorStyle
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return HelpKeyStyle
	default:
		return lipgloss.NewStyle()
	}
}
